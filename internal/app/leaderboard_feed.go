package app

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"greenplay-service/internal/domain"
)

// LeaderboardFeed polls the top of the ranking and fans changed snapshots out
// to subscribers. Submissions never push to it; it only reads.
type LeaderboardFeed struct {
	board    *LeaderboardService
	size     int
	interval time.Duration
	log      *logrus.Entry

	mu          sync.Mutex
	last        *domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed(board *LeaderboardService, size int, interval time.Duration) *LeaderboardFeed {
	if size <= 0 {
		size = 10
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LeaderboardFeed{
		board:       board,
		size:        size,
		interval:    interval,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// WithLogger sets where failed polls are reported.
func (f *LeaderboardFeed) WithLogger(log *logrus.Entry) *LeaderboardFeed {
	if log != nil {
		f.log = log
	}
	return f
}

// Size is the number of entries in each snapshot.
func (f *LeaderboardFeed) Size() int {
	return f.size
}

// Run polls until ctx is done. Polls are skipped while nobody listens; a
// failed poll is logged and the last snapshot kept.
func (f *LeaderboardFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f.idle() {
				continue
			}
			if _, err := f.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.log.WithError(err).Error("leaderboard poll failed")
			}
		}
	}
}

// Refresh reads the current top entries and broadcasts them when they differ
// from the last snapshot. It reports whether a broadcast happened.
func (f *LeaderboardFeed) Refresh(ctx context.Context) (bool, error) {
	lb, err := f.board.list(ctx, LeaderboardQuery{}, 1, f.size)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last != nil && reflect.DeepEqual(f.last.Entries, lb.Entries) {
		return false, nil
	}
	f.last = &lb
	f.broadcastLocked(lb)
	return true, nil
}

// Subscribe returns a channel primed with the current snapshot. The caller
// must invoke cancel to release it.
func (f *LeaderboardFeed) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	f.mu.Lock()
	primed := f.last != nil && len(f.subscribers) > 0
	f.mu.Unlock()
	if !primed {
		if _, err := f.Refresh(ctx); err != nil {
			return nil, nil, err
		}
	}

	ch := make(chan domain.Leaderboard, 8)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	initial := *f.last
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

func (f *LeaderboardFeed) idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) == 0
}

func (f *LeaderboardFeed) broadcastLocked(lb domain.Leaderboard) {
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// slow reader: drop its oldest snapshot so the broadcast never blocks
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
