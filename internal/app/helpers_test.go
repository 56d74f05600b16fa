package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/memory"
)

// testClock is a mutable clock shared by a test's services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Clock() app.Clock {
	return app.Clock{Now: c.Now, Location: time.UTC}
}

var day1 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock      *testClock
	store      *memory.Store
	games      *app.GameService
	challenges *app.ChallengeService
	board      *app.LeaderboardService
	ledger     *app.LedgerService
	observer   *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTestClock(day1)
	store := memory.NewStoreWithClock(clock.Now)
	questions := memory.NewQuestionCache(memory.NewStaticQuestionLoader(testQuestions()), time.Minute)
	dir, err := domain.NewFacultyDirectory(domain.Faculties, domain.DefaultFacultyAliases)
	require.NoError(t, err)
	obs := &recordingObserver{}
	quiz := app.QuizSettings{PointsPerCorrect: 10, QuestionsPerGame: 5, TimeLimit: time.Minute}
	return &fixture{
		clock:      clock,
		store:      store,
		games:      app.NewGameService(store, questions, clock.Clock(), quiz, obs),
		challenges: app.NewChallengeService(store, clock.Clock(), obs),
		board:      app.NewLeaderboardService(store, dir),
		ledger:     app.NewLedgerService(store),
		observer:   obs,
	}
}

func (f *fixture) addUser(t *testing.T, u domain.User) domain.User {
	t.Helper()
	if u.Role == "" {
		u.Role = domain.RoleStudent
	}
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		return tx.CreateUser(ctx, &u)
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) student(t *testing.T, email string) domain.User {
	t.Helper()
	return f.addUser(t, domain.User{Email: email, StudentID: email, FirstName: "Test", LastName: email, Faculty: "FCI"})
}

func (f *fixture) totalPoints(t *testing.T, userID int64) int {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.TotalPoints
}

func (f *fixture) stats(t *testing.T, userID int64) domain.UserStats {
	t.Helper()
	st, err := f.store.GetStats(context.Background(), userID)
	require.NoError(t, err)
	return st
}

// assertLedgerConsistent checks totalPoints against the replayed ledger.
func (f *fixture) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	drifts, err := f.ledger.Recompute(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Which R comes first?", Options: [4]string{"Reduce", "Reuse", "Recycle", "Repair"}, CorrectOption: 1, Fact: "Reducing avoids waste entirely.", Difficulty: "easy"},
		{ID: 2, Text: "Which is renewable?", Options: [4]string{"Coal", "Gas", "Solar", "Oil"}, CorrectOption: 3, Fact: "Sunlight is replenished daily.", Difficulty: "easy"},
		{ID: 3, Text: "How long does a plastic bottle take to degrade?", Options: [4]string{"1 year", "10 years", "50 years", "450 years"}, CorrectOption: 4, Fact: "Plastic bottles persist for centuries.", Difficulty: "medium"},
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	games  map[domain.GameType]int
	points map[string]int
	claims map[string]int
}

func (o *recordingObserver) GameSubmitted(game domain.GameType, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.games == nil {
		o.games = map[domain.GameType]int{}
	}
	o.games[game]++
}

func (o *recordingObserver) PointsAwarded(source string, points int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.points == nil {
		o.points = map[string]int{}
	}
	o.points[source] += points
}

func (o *recordingObserver) ChallengeClaimed(flag domain.ChallengeFlag, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.claims == nil {
		o.claims = map[string]int{}
	}
	o.claims[string(flag)+"/"+outcome]++
}

// failingStore wraps a store and fails the first SaveStats inside a transaction.
type failingStore struct {
	*memory.Store
}

func (s failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx app.Tx) error {
		return fn(ctx, failingTx{Tx: tx})
	})
}

type failingTx struct {
	app.Tx
}

func (failingTx) SaveStats(context.Context, domain.UserStats) error {
	return domain.Persistence("update user stats", errDiskFull)
}

var errDiskFull = errors.New("disk full")
