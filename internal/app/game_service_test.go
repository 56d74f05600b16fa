package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/memory"
)

func TestSubmitMemoryAwardsPointsAndDailyBonus(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")

	res, err := f.games.SubmitMemory(context.Background(), u.ID, domain.MemoryResult{Moves: 18, TimeTaken: 70, Level: 1})
	require.NoError(t, err)
	assert.Equal(t, 70, res.Points)
	assert.Equal(t, 15, res.MoveBonus)
	assert.Equal(t, 5, res.TimeBonus)
	assert.Equal(t, app.DailyGameBonus, res.DailyBonus)
	assert.Equal(t, 90, res.TotalPoints)
	assert.Equal(t, 1, res.CurrentStreak)

	st := f.stats(t, u.ID)
	assert.Equal(t, 1, st.GamesPlayed[domain.GameMemory])
	assert.Equal(t, 70, st.Points[domain.GameMemory])
	require.NotNil(t, st.LastPlayedDate)
	assert.True(t, domain.SameDay(*st.LastPlayedDate, day1))

	recent, err := f.store.RecentScores(context.Background(), u.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 18, recent[0].Score)
	assert.JSONEq(t, `{"moves":18,"timeTaken":70,"level":1,"moveBonus":15,"timeBonus":5}`, string(recent[0].Details))

	assert.Equal(t, 1, f.observer.games[domain.GameMemory])
	assert.Equal(t, 20, f.observer.points["daily_game"])
	f.assertLedgerConsistent(t)
}

func TestDailyGameBonusOncePerDayAndStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")
	ctx := context.Background()

	_, err := f.games.SubmitMemory(ctx, u.ID, domain.MemoryResult{Moves: 18, TimeTaken: 70, Level: 1})
	require.NoError(t, err)

	res, err := f.games.SubmitPuzzle(ctx, u.ID, domain.PuzzleResult{Moves: 45, TimeTaken: 100, PuzzleNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, 55, res.Points)
	assert.Zero(t, res.DailyBonus, "second game of the day earns no bonus")
	assert.Equal(t, 145, res.TotalPoints)
	assert.Equal(t, 1, res.CurrentStreak, "same day keeps the streak")

	f.clock.Advance(24 * time.Hour)
	res, err = f.games.SubmitSorting(ctx, u.ID, domain.SortingResult{CorrectSorts: 9, TotalItems: 10, TimeTaken: 40, Level: 1})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Points)
	assert.Equal(t, app.DailyGameBonus, res.DailyBonus)
	assert.Equal(t, 205, res.TotalPoints)
	assert.Equal(t, 2, res.CurrentStreak)

	f.clock.Advance(48 * time.Hour)
	res, err = f.games.SubmitPuzzle(ctx, u.ID, domain.PuzzleResult{Moves: 200, TimeTaken: 300})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Points)
	assert.Equal(t, 1, res.CurrentStreak, "a missed day resets the streak")

	st := f.stats(t, u.ID)
	assert.Equal(t, 4, st.TotalGames())
	assert.Equal(t, 70+55+40+30, st.GamePoints())
	assert.Equal(t, st.GamePoints()+3*app.DailyGameBonus, f.totalPoints(t, u.ID))
	f.assertLedgerConsistent(t)
}

func TestSubmitRollsBackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")
	questions := memory.NewQuestionCache(memory.NewStaticQuestionLoader(testQuestions()), time.Minute)
	games := app.NewGameService(failingStore{f.store}, questions, f.clock.Clock(), app.QuizSettings{PointsPerCorrect: 10}, nil)

	_, err := games.SubmitMemory(context.Background(), u.ID, domain.MemoryResult{Moves: 10, TimeTaken: 10, Level: 1})
	require.ErrorIs(t, err, domain.ErrPersistence)

	assert.Zero(t, f.totalPoints(t, u.ID))
	assert.Zero(t, f.stats(t, u.ID).TotalGames())
	recent, err := f.store.RecentScores(context.Background(), u.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	entry, err := f.store.GetDailyChallenge(context.Background(), u.ID, day1)
	require.NoError(t, err)
	assert.False(t, entry.GamePlayedToday)
}

func TestSubmitValidationHappensBeforeWrites(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")

	_, err := f.games.SubmitSorting(context.Background(), u.ID, domain.SortingResult{CorrectSorts: 0, TotalItems: 0, TimeTaken: 10, Level: 1})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.totalPoints(t, u.ID))

	_, err = f.games.SubmitMemory(context.Background(), 999, domain.MemoryResult{Moves: 10, TimeTaken: 10, Level: 1})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnswerQuestion(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")
	ctx := context.Background()

	check, err := f.games.AnswerQuestion(ctx, u.ID, 2, 3)
	require.NoError(t, err)
	assert.True(t, check.IsCorrect)
	assert.Equal(t, 10, check.PointsAwarded)
	assert.Equal(t, 3, check.CorrectAnswerIndex)
	assert.Equal(t, 10, check.TotalPoints)

	check, err = f.games.AnswerQuestion(ctx, u.ID, 1, 2)
	require.NoError(t, err)
	assert.False(t, check.IsCorrect)
	assert.Zero(t, check.PointsAwarded)
	assert.Equal(t, 1, check.CorrectAnswerIndex)
	assert.Equal(t, 10, check.TotalPoints)

	st := f.stats(t, u.ID)
	assert.Equal(t, 10, st.Points[domain.GameQuiz])
	assert.Zero(t, st.GamesPlayed[domain.GameQuiz], "answers alone are not a game")

	activities, err := f.store.RecentActivities(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityQuizAnswer, activities[0].Kind)

	_, err = f.games.AnswerQuestion(ctx, u.ID, 2, 5)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.games.AnswerQuestion(ctx, u.ID, 42, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertLedgerConsistent(t)
}

func TestSubmitQuizRecordsHistoryWithoutPoints(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")
	ctx := context.Background()

	_, err := f.games.AnswerQuestion(ctx, u.ID, 1, 1)
	require.NoError(t, err)

	summary, err := f.games.SubmitQuiz(ctx, u.ID, app.QuizSubmission{
		Answers: []app.QuizAnswer{
			{QuestionID: 1, Answer: 1},
			{QuestionID: 3, Answer: 2},
		},
		TimeTaken: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Score)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Zero(t, summary.Points)
	assert.Equal(t, app.DailyGameBonus, summary.DailyBonus)
	assert.Equal(t, 30, summary.TotalPoints)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "Plastic bottles persist for centuries.", summary.Results[1].Fact)

	st := f.stats(t, u.ID)
	assert.Equal(t, 1, st.GamesPlayed[domain.GameQuiz])
	assert.Equal(t, 10, st.Points[domain.GameQuiz])
	assert.Equal(t, 1, st.CurrentStreak)

	_, err = f.games.SubmitQuiz(ctx, u.ID, app.QuizSubmission{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.assertLedgerConsistent(t)
}

func TestSubmitQuizRejectsBadAnswers(t *testing.T) {
	f := newFixture(t)
	u := f.student(t, "aina@mmu.edu.my")
	ctx := context.Background()

	cases := []struct {
		name   string
		answer app.QuizAnswer
		kind   error
	}{
		{"unknown question", app.QuizAnswer{QuestionID: 99, Answer: 1}, domain.ErrNotFound},
		{"missing question id", app.QuizAnswer{QuestionID: 0, Answer: 1}, domain.ErrValidation},
		{"option too high", app.QuizAnswer{QuestionID: 1, Answer: 5}, domain.ErrValidation},
		{"option too low", app.QuizAnswer{QuestionID: 1, Answer: 0}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.games.SubmitQuiz(ctx, u.ID, app.QuizSubmission{
				Answers: []app.QuizAnswer{{QuestionID: 1, Answer: 1}, tc.answer},
			})
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	st := f.stats(t, u.ID)
	assert.Zero(t, st.GamesPlayed[domain.GameQuiz], "rejected rounds are not recorded")
	assert.Zero(t, f.totalPoints(t, u.ID))
}

func TestQuestionsHidesAnswers(t *testing.T) {
	f := newFixture(t)

	round, err := f.games.Questions(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 60, round.TimeLimit)
	assert.Len(t, round.Questions, 3, "catalog smaller than a round returns everything")

	round, err = f.games.Questions(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, round.Questions, 2)
}
