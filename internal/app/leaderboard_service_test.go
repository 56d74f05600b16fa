package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/memory"
)

func seedRanking(t *testing.T, f *fixture) (a, b, c domain.User) {
	t.Helper()
	a = f.addUser(t, domain.User{Email: "a@mmu.edu.my", StudentID: "A", FirstName: "Aina", LastName: "Lim", Faculty: "FCI", CreatedAt: day1})
	b = f.addUser(t, domain.User{Email: "b@mmu.edu.my", StudentID: "B", FirstName: "Badrul", LastName: "Tan", Faculty: "Faculty of Engineering", CreatedAt: day1.Add(time.Minute)})
	c = f.addUser(t, domain.User{Email: "c@mmu.edu.my", StudentID: "C", FirstName: "Chen", LastName: "Wei", Faculty: "Faculty of Computing", CreatedAt: day1.Add(2 * time.Minute)})
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		for id, pts := range map[int64]int{a.ID: 300, b.ID: 300, c.ID: 100} {
			if _, err := tx.AddPoints(ctx, id, pts); err != nil {
				return err
			}
		}
		return nil
	}))
	return a, b, c
}

func TestGlobalLeaderboardTieBreaksOnRegistration(t *testing.T) {
	f := newFixture(t)
	a, b, c := seedRanking(t, f)

	lb, err := f.board.Global(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, lb.Total)
	assert.Equal(t, 1, lb.Page)
	assert.Equal(t, app.DefaultPageSize, lb.Limit)
	require.Len(t, lb.Entries, 3)
	assert.Equal(t, a.ID, lb.Entries[0].UserID)
	assert.Equal(t, b.ID, lb.Entries[1].UserID)
	assert.Equal(t, c.ID, lb.Entries[2].UserID)
	assert.Equal(t, []int{1, 2, 3}, []int{lb.Entries[0].Rank, lb.Entries[1].Rank, lb.Entries[2].Rank})

	lb, err = f.board.Global(context.Background(), "", 2, 2)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 3, lb.Entries[0].Rank, "rank is offset plus position")
}

func TestFacultyLeaderboardMatchesSpellings(t *testing.T) {
	f := newFixture(t)
	a, _, c := seedRanking(t, f)

	lb, err := f.board.Faculty(context.Background(), "fci", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "FCI", lb.Faculty)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, a.ID, lb.Entries[0].UserID)
	assert.Equal(t, c.ID, lb.Entries[1].UserID)
	assert.Equal(t, 2, lb.Entries[1].Rank)

	lb, err = f.board.Faculty(context.Background(), "FET", "", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, lb.Entries, "Faculty of Engineering is not FET")

	_, err = f.board.Faculty(context.Background(), " ", "", 1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSearchTopAndRank(t *testing.T) {
	f := newFixture(t)
	a, b, c := seedRanking(t, f)
	ctx := context.Background()

	found, err := f.board.Search(ctx, "WEI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, c.ID, found[0].UserID)
	assert.Zero(t, found[0].Rank)

	_, err = f.board.Search(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	top, err := f.board.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	ra, err := f.board.Rank(ctx, a.ID)
	require.NoError(t, err)
	rb, err := f.board.Rank(ctx, b.ID)
	require.NoError(t, err)
	rc, err := f.board.Rank(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.Rank)
	assert.Equal(t, 1, rb.Rank, "ties share a rank")
	assert.Equal(t, 3, rc.Rank)

	_, err = f.board.Rank(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPageClamps(t *testing.T) {
	page, limit, offset := app.Page(0, 500)
	assert.Equal(t, 1, page)
	assert.Equal(t, app.MaxPageSize, limit)
	assert.Zero(t, offset)

	page, limit, offset = app.Page(3, 20)
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)
}

func TestLeaderboardFeedBroadcastsChanges(t *testing.T) {
	f := newFixture(t)
	a, _, c := seedRanking(t, f)
	feed := app.NewLeaderboardFeed(f.board, 2, time.Hour)
	ctx := context.Background()

	ch, cancel, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	require.Len(t, initial.Entries, 2)
	assert.Equal(t, a.ID, initial.Entries[0].UserID)

	changed, err := feed.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "unchanged ranking is not rebroadcast")

	_, err = f.games.SubmitMemory(ctx, c.ID, domain.MemoryResult{Moves: 10, TimeTaken: 10, Level: 5})
	require.NoError(t, err)
	changed, err = feed.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	select {
	case update := <-ch:
		assert.Equal(t, c.ID, update.Entries[0].UserID)
	case <-time.After(time.Second):
		t.Fatal("expected a leaderboard update")
	}
}

// flakyBoardStore fails leaderboard reads while broken is set.
type flakyBoardStore struct {
	*memory.Store
	broken atomic.Bool
}

func (s *flakyBoardStore) Leaderboard(ctx context.Context, q app.LeaderboardQuery) ([]domain.LeaderboardEntry, int, error) {
	if s.broken.Load() {
		return nil, 0, domain.Persistence("select leaderboard", errors.New("connection refused"))
	}
	return s.Store.Leaderboard(ctx, q)
}

func TestLeaderboardFeedLogsFailedPolls(t *testing.T) {
	f := newFixture(t)
	seedRanking(t, f)
	store := &flakyBoardStore{Store: f.store}
	logger, hook := logtest.NewNullLogger()
	feed := app.NewLeaderboardFeed(app.NewLeaderboardService(store, nil), 2, 10*time.Millisecond).
		WithLogger(logrus.NewEntry(logger))

	ctx, stop := context.WithCancel(context.Background())
	ch, cancel, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()
	<-ch

	store.broken.Store(true)
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.ErrorLevel && e.Message == "leaderboard poll failed" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}
