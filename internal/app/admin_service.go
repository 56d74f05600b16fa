package app

import (
	"context"

	"greenplay-service/internal/auth"
	"greenplay-service/internal/domain"
)

// AdminService backs the administration endpoints. Callers have already
// been checked for the admin role.
type AdminService struct {
	store Store
	clock Clock
}

func NewAdminService(store Store, clock Clock) *AdminService {
	return &AdminService{store: store, clock: clock}
}

// UserPage is one page of users.
type UserPage struct {
	Users []UserSummary `json:"users"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// ListUsers pages through users, newest first, optionally by role.
func (s *AdminService) ListUsers(ctx context.Context, role string, page, limit int) (UserPage, error) {
	q := UserQuery{}
	if role != "" {
		r := domain.Role(role)
		if !r.Valid() {
			return UserPage{}, domain.Validation("unknown role %q", role)
		}
		q.Role = r
	}
	page, limit, offset := Page(page, limit)
	q.Limit, q.Offset = limit, offset

	users, total, err := s.store.ListUsers(ctx, q)
	if err != nil {
		return UserPage{}, err
	}
	if users == nil {
		users = []UserSummary{}
	}
	return UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

// UserDetail is a user with full stats and recent games.
type UserDetail struct {
	domain.User
	Stats       domain.UserStats     `json:"stats"`
	RecentGames []domain.ScoreRecord `json:"recentGames"`
}

// User returns the admin view of one user.
func (s *AdminService) User(ctx context.Context, userID int64) (UserDetail, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return UserDetail{}, err
	}
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return UserDetail{}, err
	}
	recent, err := s.store.RecentScores(ctx, userID, recentGamesLimit)
	if err != nil {
		return UserDetail{}, err
	}
	if recent == nil {
		recent = []domain.ScoreRecord{}
	}
	return UserDetail{User: user, Stats: stats, RecentGames: recent}, nil
}

// Stats summarizes the platform over the last week.
func (s *AdminService) Stats(ctx context.Context) (PlatformStats, error) {
	since := s.clock.Today().AddDate(0, 0, -activityWindowDays)
	return s.store.PlatformStats(ctx, since)
}

// UpdateRole changes a user's role. Admins cannot demote themselves.
func (s *AdminService) UpdateRole(ctx context.Context, actorID, userID int64, role string) (domain.User, error) {
	r := domain.Role(role)
	if !r.Valid() {
		return domain.User{}, domain.Validation("role must be student or admin")
	}
	if actorID == userID && r != domain.RoleAdmin {
		return domain.User{}, domain.Validation("cannot remove your own admin role")
	}
	var updated domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRole(ctx, userID, r); err != nil {
			return err
		}
		user.Role = r
		updated = user
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user and everything it owns.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return domain.Validation("cannot delete your own account")
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, userID)
	})
}

// ResetPassword sets a new password that satisfies the password policy.
func (s *AdminService) ResetPassword(ctx context.Context, userID int64, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		return tx.UpdatePassword(ctx, userID, hash)
	})
}
