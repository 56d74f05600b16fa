package app

import (
	"context"
	"strings"

	"greenplay-service/internal/domain"
)

// Paging defaults for ranked lists.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	SearchLimit     = 20
	DefaultTopLimit = 3
)

// LeaderboardService ranks students by totalPoints desc, createdAt asc.
type LeaderboardService struct {
	store     Store
	faculties *domain.FacultyDirectory
}

func NewLeaderboardService(store Store, faculties *domain.FacultyDirectory) *LeaderboardService {
	return &LeaderboardService{store: store, faculties: faculties}
}

// Page normalizes page and limit into an offset.
func Page(page, limit int) (int, int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}

// Global returns one page of the student ranking, optionally narrowed to
// names or emails containing search.
func (s *LeaderboardService) Global(ctx context.Context, search string, page, limit int) (domain.Leaderboard, error) {
	return s.list(ctx, LeaderboardQuery{Search: strings.TrimSpace(search)}, page, limit)
}

// Faculty ranks only students of the given faculty code or name.
func (s *LeaderboardService) Faculty(ctx context.Context, faculty, search string, page, limit int) (domain.Leaderboard, error) {
	if strings.TrimSpace(faculty) == "" {
		return domain.Leaderboard{}, domain.Validation("faculty is required")
	}
	filter := s.faculties.Resolve(faculty)
	lb, err := s.list(ctx, LeaderboardQuery{Search: strings.TrimSpace(search), Faculty: &filter}, page, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb.Faculty = filter.Label
	return lb, nil
}

func (s *LeaderboardService) list(ctx context.Context, q LeaderboardQuery, page, limit int) (domain.Leaderboard, error) {
	page, limit, offset := Page(page, limit)
	q.Limit, q.Offset = limit, offset

	entries, total, err := s.store.Leaderboard(ctx, q)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	for i := range entries {
		entries[i].Rank = offset + i + 1
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{Entries: entries, Total: total, Page: page, Limit: limit}, nil
}

// Search returns the best-ranked students whose name or email contains q.
// Entries carry no rank.
func (s *LeaderboardService) Search(ctx context.Context, q string) ([]domain.LeaderboardEntry, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.Validation("search query is required")
	}
	entries, _, err := s.store.Leaderboard(ctx, LeaderboardQuery{Search: q, Limit: SearchLimit})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = 0
	}
	return entries, nil
}

// Top returns the first limit students; limit <= 0 means three.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	lb, err := s.list(ctx, LeaderboardQuery{}, 1, limit)
	if err != nil {
		return nil, err
	}
	return lb.Entries, nil
}

// UserRank is a user's global position.
type UserRank struct {
	UserID      int64 `json:"userId"`
	Rank        int   `json:"rank"`
	TotalPoints int   `json:"totalPoints"`
}

// Rank is 1 plus the number of students with strictly more points, so tied
// users share a rank.
func (s *LeaderboardService) Rank(ctx context.Context, userID int64) (UserRank, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return UserRank{}, err
	}
	above, err := s.store.CountStudentsAbove(ctx, user.TotalPoints)
	if err != nil {
		return UserRank{}, err
	}
	return UserRank{UserID: user.ID, Rank: above + 1, TotalPoints: user.TotalPoints}, nil
}
