package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
	loggerKey    = "logger"
	userIDKey    = "userID"
	roleKey      = "role"
)

// RequestID reuses an inbound X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger attaches a request-scoped entry and logs one line per request.
func RequestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		entry := log.WithField("request_id", c.GetString(requestIDKey))
		c.Set(loggerKey, entry)

		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if uid, ok := c.Get(userIDKey); ok {
			fields["user_id"] = uid
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.WithFields(fields).Error("request")
		case status >= 400:
			entry.WithFields(fields).Warn("request")
		default:
			entry.WithFields(fields).Info("request")
		}
	}
}

func requestLogger(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(loggerKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Authenticate requires a valid bearer token and stores the caller's id and role.
func Authenticate(accounts *app.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			abortWithError(c, domain.Unauthorized("missing bearer token"))
			return
		}
		claims, err := accounts.Authenticate(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireAdmin checks the stored role rather than the token claim, so a
// demotion takes effect before the token expires.
func RequireAdmin(accounts *app.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := accounts.Me(c.Request.Context(), currentUserID(c))
		if err != nil {
			if domain.IsNotFound(err) {
				err = domain.Unauthorized("account no longer exists")
			}
			abortWithError(c, err)
			return
		}
		if user.Role != domain.RoleAdmin {
			abortWithError(c, domain.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
