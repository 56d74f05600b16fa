package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"greenplay-service/internal/domain"
)

type pageQuery struct {
	Page  int    `form:"page" binding:"omitempty,min=0"`
	Limit int    `form:"limit" binding:"omitempty,min=0"`
	Query string `form:"q"`
}

func (h *handler) globalLeaderboard(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	lb, err := h.board.Global(c.Request.Context(), q.Query, q.Page, q.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *handler) facultyLeaderboard(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	lb, err := h.board.Faculty(c.Request.Context(), c.Param("faculty"), q.Query, q.Page, q.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *handler) searchLeaderboard(c *gin.Context) {
	entries, err := h.board.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": entries})
}

func (h *handler) topPlayers(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, domain.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	entries, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topPlayers": entries})
}

func (h *handler) userRank(c *gin.Context) {
	id, err := idParam(c, "userId")
	if err != nil {
		abortWithError(c, err)
		return
	}
	rank, err := h.board.Rank(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rank)
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("%s must be a positive integer", name)
	}
	return id, nil
}
