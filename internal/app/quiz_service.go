package app

import (
	"context"

	"greenplay-service/internal/domain"
)

// QuizRound is a set of questions handed to the client without answers.
type QuizRound struct {
	Questions []domain.PublicQuestion `json:"questions"`
	TimeLimit int                     `json:"timeLimit"`
}

// AnswerCheck is the outcome of a single quiz answer.
type AnswerCheck struct {
	IsCorrect          bool   `json:"isCorrect"`
	PointsAwarded      int    `json:"pointsAwarded"`
	CorrectAnswerIndex int    `json:"correctAnswerIndex"`
	Fact               string `json:"fact,omitempty"`
	TotalPoints        int    `json:"totalPoints"`
}

// QuizAnswer is one answered question; Answer is the 1-based option.
type QuizAnswer struct {
	QuestionID int64 `json:"questionId"`
	Answer     int   `json:"answer"`
}

// QuizSubmission closes a quiz round.
type QuizSubmission struct {
	Answers   []QuizAnswer `json:"answers"`
	TimeTaken int          `json:"timeTaken"`
}

// QuizReview echoes one answer against the key.
type QuizReview struct {
	QuestionID    int64  `json:"questionId"`
	UserAnswer    int    `json:"userAnswer"`
	CorrectAnswer int    `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Fact          string `json:"fact"`
}

// QuizSummary is returned when a round is submitted.
type QuizSummary struct {
	Score          int          `json:"score"`
	TotalQuestions int          `json:"totalQuestions"`
	Points         int          `json:"points"`
	DailyBonus     int          `json:"dailyBonus"`
	TotalPoints    int          `json:"totalPoints"`
	CurrentStreak  int          `json:"currentStreak"`
	Results        []QuizReview `json:"results"`
}

// Questions draws a random round. count <= 0 uses the configured round size.
func (s *GameService) Questions(ctx context.Context, count int) (QuizRound, error) {
	if count <= 0 {
		count = s.quiz.QuestionsPerGame
	}
	questions, err := s.questions.RandomQuestions(ctx, count)
	if err != nil {
		return QuizRound{}, err
	}
	if len(questions) == 0 {
		return QuizRound{}, domain.NotFound("quiz questions")
	}
	round := QuizRound{
		Questions: make([]domain.PublicQuestion, 0, len(questions)),
		TimeLimit: int(s.quiz.TimeLimit.Seconds()),
	}
	for _, q := range questions {
		round.Questions = append(round.Questions, q.Public())
	}
	return round, nil
}

// AnswerQuestion checks one answer. A correct answer is the only way quiz
// points are earned: it credits the quiz subtotal and totalPoints and appends
// a quiz_answer activity in one transaction.
func (s *GameService) AnswerQuestion(ctx context.Context, userID, questionID int64, answer int) (AnswerCheck, error) {
	if err := validateAnswer(questionID, answer); err != nil {
		return AnswerCheck{}, err
	}
	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return AnswerCheck{}, err
	}

	check := AnswerCheck{
		IsCorrect:          checkAnswer(q, answer),
		CorrectAnswerIndex: q.CorrectOption,
		Fact:               q.Fact,
	}
	if !check.IsCorrect {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return AnswerCheck{}, err
		}
		check.TotalPoints = user.TotalPoints
		return check, nil
	}

	points := s.quiz.PointsPerCorrect
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx, userID)
		if err != nil {
			return err
		}
		data := map[string]any{"questionId": questionID, "answer": answer}
		total, err := activityAward(userID, domain.ActivityQuizAnswer, "Answered a quiz question", points, data).apply(ctx, tx)
		if err != nil {
			return err
		}
		stats.Points[domain.GameQuiz] += points
		if err := tx.SaveStats(ctx, stats); err != nil {
			return err
		}
		check.TotalPoints = total
		return nil
	})
	if err != nil {
		return AnswerCheck{}, err
	}

	check.PointsAwarded = points
	s.observer.PointsAwarded(string(domain.ActivityQuizAnswer), points)
	return check, nil
}

// SubmitQuiz closes a round. Points were already granted per answer, so the
// score record carries the correct count with zero points; the play still
// advances the streak and may earn the first-game-of-day bonus. Answers are
// checked like single answers; one bad entry rejects the round unrecorded.
func (s *GameService) SubmitQuiz(ctx context.Context, userID int64, sub QuizSubmission) (QuizSummary, error) {
	if len(sub.Answers) == 0 {
		return QuizSummary{}, domain.Validation("answers are required")
	}
	if sub.TimeTaken < 0 {
		return QuizSummary{}, domain.Validation("timeTaken must be non-negative")
	}
	for _, a := range sub.Answers {
		if err := validateAnswer(a.QuestionID, a.Answer); err != nil {
			return QuizSummary{}, err
		}
	}

	summary := QuizSummary{
		TotalQuestions: len(sub.Answers),
		Results:        make([]QuizReview, 0, len(sub.Answers)),
	}
	for _, a := range sub.Answers {
		q, err := s.questions.GetQuestion(ctx, a.QuestionID)
		if err != nil {
			return QuizSummary{}, err
		}
		ok := checkAnswer(q, a.Answer)
		if ok {
			summary.Score++
		}
		summary.Results = append(summary.Results, QuizReview{
			QuestionID:    q.ID,
			UserAnswer:    a.Answer,
			CorrectAnswer: q.CorrectOption,
			IsCorrect:     ok,
			Fact:          q.Fact,
		})
	}

	details := map[string]any{
		"correctCount":   summary.Score,
		"totalQuestions": summary.TotalQuestions,
		"timeTaken":      sub.TimeTaken,
	}
	rec := &domain.ScoreRecord{GameType: domain.GameQuiz, Score: summary.Score, Details: mustJSON(details)}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		played, err := s.recordPlay(ctx, tx, userID, rec, 0)
		if err != nil {
			return err
		}
		summary.DailyBonus = played.dailyBonus
		summary.TotalPoints = played.total
		summary.CurrentStreak = played.streak
		return nil
	})
	if err != nil {
		return QuizSummary{}, err
	}

	s.observer.GameSubmitted(domain.GameQuiz, 0)
	if summary.DailyBonus > 0 {
		s.observer.PointsAwarded(string(domain.ActivityDailyGame), summary.DailyBonus)
	}
	return summary, nil
}

func validateAnswer(questionID int64, answer int) error {
	if questionID <= 0 {
		return domain.Validation("questionId is required")
	}
	if answer < 1 || answer > 4 {
		return domain.Validation("answer must be between 1 and 4")
	}
	return nil
}

func checkAnswer(q domain.Question, answer int) bool {
	return answer == q.CorrectOption
}
