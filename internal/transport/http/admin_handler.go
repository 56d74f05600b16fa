package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type userListQuery struct {
	Page  int    `form:"page" binding:"omitempty,min=0"`
	Limit int    `form:"limit" binding:"omitempty,min=0"`
	Role  string `form:"role"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *handler) listUsers(c *gin.Context) {
	var q userListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.admin.ListUsers(c.Request.Context(), q.Role, q.Page, q.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) userDetail(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	detail, err := h.admin.User(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handler) platformStats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) updateRole(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.admin.UpdateRole(c.Request.Context(), currentUserID(c), id, req.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *handler) deleteUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.admin.DeleteUser(c.Request.Context(), currentUserID(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *handler) resetPassword(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.admin.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}
