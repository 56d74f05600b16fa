// Package http exposes the REST API and the live leaderboard websocket.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"greenplay-service/internal/app"
	"greenplay-service/internal/metrics"
)

// Services are the use cases the router dispatches to.
type Services struct {
	Accounts    *app.AccountService
	Games       *app.GameService
	Challenges  *app.ChallengeService
	Leaderboard *app.LeaderboardService
	Profiles    *app.ProfileService
	Admin       *app.AdminService
}

// RouterOptions carry optional infrastructure. A nil Feed disables the
// websocket route; nil Metrics disables /metrics.
type RouterOptions struct {
	Log     *logrus.Entry
	Feed    *app.LeaderboardFeed
	Metrics *metrics.Metrics
	// Ping reports backing store health for /api/health.
	Ping func(ctx context.Context) error
}

type handler struct {
	accounts   *app.AccountService
	games      *app.GameService
	challenges *app.ChallengeService
	board      *app.LeaderboardService
	profiles   *app.ProfileService
	admin      *app.AdminService
	ping       func(ctx context.Context) error
}

func NewRouter(svc Services, opts RouterOptions) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &handler{
		accounts:   svc.Accounts,
		games:      svc.Games,
		challenges: svc.Challenges,
		board:      svc.Leaderboard,
		profiles:   svc.Profiles,
		admin:      svc.Admin,
		ping:       opts.Ping,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(log))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if opts.Feed != nil {
		r.GET("/ws/leaderboard", NewWSHandler(opts.Feed).ServeWS)
	}

	api := r.Group("/api")
	api.GET("/health", h.health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", Authenticate(h.accounts), h.me)
	}

	secured := api.Group("", Authenticate(h.accounts))

	games := secured.Group("/games")
	{
		games.POST("/memory/submit", h.submitMemory)
		games.POST("/puzzle/submit", h.submitPuzzle)
		games.POST("/sorting/submit", h.submitSorting)
		games.GET("/quiz/questions", h.quizQuestions)
		games.POST("/quiz/answer", h.answerQuestion)
		games.POST("/quiz/submit", h.submitQuiz)
	}

	board := secured.Group("/leaderboard")
	{
		board.GET("/global", h.globalLeaderboard)
		board.GET("/faculty/:faculty", h.facultyLeaderboard)
		board.GET("/search", h.searchLeaderboard)
		board.GET("/top", h.topPlayers)
		board.GET("/rank/:userId", h.userRank)
	}

	challenges := secured.Group("/challenges")
	{
		challenges.GET("", h.challengeProgress)
		challenges.POST("/claim-daily-login", h.claimDailyLogin)
		challenges.POST("/claim-weekly-streak", h.claimWeeklyStreak)
	}

	profile := secured.Group("/profile")
	{
		profile.GET("/me", h.profile)
		profile.GET("/me/stats", h.playerStats)
		profile.GET("/me/achievements", h.achievements)
		profile.GET("/:id", h.profile)
	}

	admin := secured.Group("/admin", RequireAdmin(h.accounts))
	{
		admin.GET("/users", h.listUsers)
		admin.GET("/users/:id", h.userDetail)
		admin.PUT("/users/:id/role", h.updateRole)
		admin.DELETE("/users/:id", h.deleteUser)
		admin.POST("/users/:id/reset-password", h.resetPassword)
		admin.GET("/stats", h.platformStats)
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	status, db := "healthy", "ok"
	code := http.StatusOK
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			requestLogger(c).WithError(err).Warn("health check failed")
			status, db = "unhealthy", "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "database": db})
}
