package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) challengeProgress(c *gin.Context) {
	progress, err := h.challenges.Progress(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *handler) claimDailyLogin(c *gin.Context) {
	res, err := h.challenges.ClaimDailyLogin(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) claimWeeklyStreak(c *gin.Context) {
	res, err := h.challenges.ClaimWeeklyStreak(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
