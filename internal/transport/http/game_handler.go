package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

type memoryRequest struct {
	Moves     *int `json:"moves" binding:"required"`
	TimeTaken *int `json:"timeTaken" binding:"required"`
	Level     *int `json:"level" binding:"omitempty,min=1,max=100"`
}

type puzzleRequest struct {
	Moves        *int `json:"moves" binding:"required"`
	TimeTaken    *int `json:"timeTaken" binding:"required"`
	PuzzleNumber int  `json:"puzzleNumber"`
}

type sortingRequest struct {
	CorrectSorts *int `json:"correctSorts" binding:"required"`
	TotalItems   *int `json:"totalItems" binding:"required"`
	TimeTaken    *int `json:"timeTaken" binding:"required"`
	Level        *int `json:"level" binding:"omitempty,min=1,max=100"`
}

type answerRequest struct {
	QuestionID *int64 `json:"questionId" binding:"required"`
	UserAnswer *int   `json:"userAnswer" binding:"required"`
}

type questionsQuery struct {
	Count int `form:"count" binding:"omitempty,min=1,max=50"`
}

func levelOrDefault(level *int) int {
	if level == nil {
		return 1
	}
	return *level
}

func (h *handler) submitMemory(c *gin.Context) {
	var req memoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.games.SubmitMemory(c.Request.Context(), currentUserID(c), domain.MemoryResult{
		Moves:     *req.Moves,
		TimeTaken: *req.TimeTaken,
		Level:     levelOrDefault(req.Level),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) submitPuzzle(c *gin.Context) {
	var req puzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.games.SubmitPuzzle(c.Request.Context(), currentUserID(c), domain.PuzzleResult{
		Moves:        *req.Moves,
		TimeTaken:    *req.TimeTaken,
		PuzzleNumber: req.PuzzleNumber,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) submitSorting(c *gin.Context) {
	var req sortingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.games.SubmitSorting(c.Request.Context(), currentUserID(c), domain.SortingResult{
		CorrectSorts: *req.CorrectSorts,
		TotalItems:   *req.TotalItems,
		TimeTaken:    *req.TimeTaken,
		Level:        levelOrDefault(req.Level),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) quizQuestions(c *gin.Context) {
	var q questionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	round, err := h.games.Questions(c.Request.Context(), q.Count)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

func (h *handler) answerQuestion(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.games.AnswerQuestion(c.Request.Context(), currentUserID(c), *req.QuestionID, *req.UserAnswer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) submitQuiz(c *gin.Context) {
	var req app.QuizSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.games.SubmitQuiz(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
