package app

import (
	"context"
	"time"

	"greenplay-service/internal/domain"
)

// QuizSettings configures the quiz game.
type QuizSettings struct {
	PointsPerCorrect int
	QuestionsPerGame int
	TimeLimit        time.Duration
}

// GameService contains the game submission use cases.
type GameService struct {
	store     Store
	questions QuestionRepository
	clock     Clock
	quiz      QuizSettings
	observer  Observer
}

func NewGameService(store Store, questions QuestionRepository, clock Clock, quiz QuizSettings, observer Observer) *GameService {
	if observer == nil {
		observer = nopObserver{}
	}
	if quiz.QuestionsPerGame <= 0 {
		quiz.QuestionsPerGame = 5
	}
	return &GameService{store: store, questions: questions, clock: clock, quiz: quiz, observer: observer}
}

// GameResult is returned by every scored submission.
type GameResult struct {
	domain.Score
	DailyBonus    int `json:"dailyBonus"`
	TotalPoints   int `json:"totalPoints"`
	CurrentStreak int `json:"currentStreak"`
}

// SubmitMemory scores and records a memory game.
func (s *GameService) SubmitMemory(ctx context.Context, userID int64, r domain.MemoryResult) (GameResult, error) {
	score, err := domain.ScoreMemory(r)
	if err != nil {
		return GameResult{}, err
	}
	details := map[string]any{
		"moves":     r.Moves,
		"timeTaken": r.TimeTaken,
		"level":     r.Level,
		"moveBonus": score.MoveBonus,
		"timeBonus": score.TimeBonus,
	}
	return s.submit(ctx, userID, domain.GameMemory, r.Moves, score, details)
}

// SubmitPuzzle scores and records a puzzle game.
func (s *GameService) SubmitPuzzle(ctx context.Context, userID int64, r domain.PuzzleResult) (GameResult, error) {
	score, err := domain.ScorePuzzle(r)
	if err != nil {
		return GameResult{}, err
	}
	details := map[string]any{
		"moves":        r.Moves,
		"timeTaken":    r.TimeTaken,
		"puzzleNumber": r.PuzzleNumber,
		"moveBonus":    score.MoveBonus,
		"timeBonus":    score.TimeBonus,
	}
	return s.submit(ctx, userID, domain.GamePuzzle, r.Moves, score, details)
}

// SubmitSorting scores and records a sorting game.
func (s *GameService) SubmitSorting(ctx context.Context, userID int64, r domain.SortingResult) (GameResult, error) {
	score, err := domain.ScoreSorting(r)
	if err != nil {
		return GameResult{}, err
	}
	details := map[string]any{
		"correctSorts":  r.CorrectSorts,
		"totalItems":    r.TotalItems,
		"accuracy":      score.Accuracy,
		"timeTaken":     r.TimeTaken,
		"level":         r.Level,
		"accuracyBonus": score.AccuracyBonus,
		"timeBonus":     score.TimeBonus,
	}
	return s.submit(ctx, userID, domain.GameSorting, r.CorrectSorts, score, details)
}

func (s *GameService) submit(ctx context.Context, userID int64, game domain.GameType, raw int, score domain.Score, details any) (GameResult, error) {
	result := GameResult{Score: score}
	rec := &domain.ScoreRecord{GameType: game, Score: raw, Details: mustJSON(details)}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		played, err := s.recordPlay(ctx, tx, userID, rec, score.Points)
		if err != nil {
			return err
		}
		result.DailyBonus = played.dailyBonus
		result.TotalPoints = played.total
		result.CurrentStreak = played.streak
		return nil
	})
	if err != nil {
		return GameResult{}, err
	}

	s.observer.GameSubmitted(game, score.Points)
	s.observer.PointsAwarded(string(game), score.Points)
	if result.DailyBonus > 0 {
		s.observer.PointsAwarded(string(domain.ActivityDailyGame), result.DailyBonus)
	}
	return result, nil
}

type playOutcome struct {
	total      int
	streak     int
	dailyBonus int
}

// recordPlay is the shared submission transaction body: append the score
// record, bump the per-game counters, add the points, advance the streak and
// grant the first-game-of-day bonus once.
func (s *GameService) recordPlay(ctx context.Context, tx Tx, userID int64, rec *domain.ScoreRecord, points int) (playOutcome, error) {
	var out playOutcome
	today := s.clock.Today()

	if _, err := tx.LockUser(ctx, userID); err != nil {
		return out, err
	}
	stats, err := tx.LockStats(ctx, userID)
	if err != nil {
		return out, err
	}

	rec.PlayedAt = s.clock.now()
	total, err := award{userID: userID, points: points, score: rec}.apply(ctx, tx)
	if err != nil {
		return out, err
	}

	stats.GamesPlayed[rec.GameType]++
	stats.Points[rec.GameType] += points
	stats.CurrentStreak = domain.NextStreak(stats.LastPlayedDate, stats.CurrentStreak, today)
	stats.LastPlayedDate = &today
	if err := tx.SaveStats(ctx, stats); err != nil {
		return out, err
	}

	first, err := tx.ClaimFlag(ctx, userID, today, domain.FlagGamePlayed)
	if err != nil {
		return out, err
	}
	if first {
		bonus := activityAward(userID, domain.ActivityDailyGame, "Completed Daily Game Challenge", DailyGameBonus, nil)
		if total, err = bonus.apply(ctx, tx); err != nil {
			return out, err
		}
		out.dailyBonus = DailyGameBonus
	}

	out.total = total
	out.streak = stats.CurrentStreak
	return out, nil
}
