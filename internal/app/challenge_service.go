package app

import (
	"context"
	"errors"

	"greenplay-service/internal/domain"
)

// Claim outcomes reported to the Observer.
const (
	ClaimAwarded        = "awarded"
	ClaimAlreadyClaimed = "already_claimed"
	ClaimNotEligible    = "requirement_not_met"
)

// ChallengeService runs the once-per-day claims.
type ChallengeService struct {
	store    Store
	clock    Clock
	observer Observer
}

func NewChallengeService(store Store, clock Clock, observer Observer) *ChallengeService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ChallengeService{store: store, clock: clock, observer: observer}
}

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	PointsEarned int    `json:"pointsEarned"`
	TotalPoints  int    `json:"totalPoints"`
}

// ChallengeProgress is today's state of the three challenges.
type ChallengeProgress struct {
	Date         string             `json:"date"`
	DailyLogin   DailyLoginProgress `json:"dailyLogin"`
	PlayAnyGame  PlayGameProgress   `json:"playAnyGame"`
	WeeklyStreak StreakProgress     `json:"weeklyStreak"`
}

type DailyLoginProgress struct {
	Claimed   bool `json:"claimed"`
	Points    int  `json:"points"`
	Completed bool `json:"completed"`
}

type PlayGameProgress struct {
	Completed bool `json:"completed"`
	Progress  int  `json:"progress"`
	Target    int  `json:"target"`
	Points    int  `json:"points"`
}

type StreakProgress struct {
	Progress    int  `json:"progress"`
	Target      int  `json:"target"`
	BonusPoints int  `json:"bonusPoints"`
	Claimed     bool `json:"claimed"`
	CanClaim    bool `json:"canClaim"`
}

// Progress reports today's claims for userID.
func (s *ChallengeService) Progress(ctx context.Context, userID int64) (ChallengeProgress, error) {
	today := s.clock.Today()
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return ChallengeProgress{}, err
	}
	entry, err := s.store.GetDailyChallenge(ctx, userID, today)
	if err != nil {
		return ChallengeProgress{}, err
	}
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return ChallengeProgress{}, err
	}

	played := 0
	if entry.GamePlayedToday {
		played = 1
	}
	return ChallengeProgress{
		Date: today.Format("2006-01-02"),
		DailyLogin: DailyLoginProgress{
			Claimed:   entry.DailyLoginClaimed,
			Points:    DailyLoginBonus,
			Completed: true,
		},
		PlayAnyGame: PlayGameProgress{
			Completed: entry.GamePlayedToday,
			Progress:  played,
			Target:    1,
			Points:    DailyGameBonus,
		},
		WeeklyStreak: StreakProgress{
			Progress:    stats.CurrentStreak,
			Target:      domain.WeeklyStreakTarget,
			BonusPoints: WeeklyStreakBonus,
			Claimed:     entry.WeeklyStreakBonus,
			CanClaim:    stats.CurrentStreak >= domain.WeeklyStreakTarget && !entry.WeeklyStreakBonus,
		},
	}, nil
}

// ClaimDailyLogin grants the daily login bonus once per day.
func (s *ChallengeService) ClaimDailyLogin(ctx context.Context, userID int64) (ClaimResult, error) {
	today := s.clock.Today()
	var total int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		claimed, err := tx.ClaimFlag(ctx, userID, today, domain.FlagDailyLogin)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.AlreadyClaimed("Daily login bonus already claimed today")
		}
		total, err = activityAward(userID, domain.ActivityDailyLogin, "Claimed Daily Login Bonus", DailyLoginBonus, nil).apply(ctx, tx)
		return err
	})
	if err != nil {
		s.claimFailed(domain.FlagDailyLogin, err)
		return ClaimResult{}, err
	}

	s.observer.ChallengeClaimed(domain.FlagDailyLogin, ClaimAwarded)
	s.observer.PointsAwarded(string(domain.ActivityDailyLogin), DailyLoginBonus)
	return ClaimResult{
		Success:      true,
		Message:      "Daily login bonus claimed!",
		PointsEarned: DailyLoginBonus,
		TotalPoints:  total,
	}, nil
}

// ClaimWeeklyStreak grants the streak bonus once per day to users whose
// streak has reached the weekly target.
func (s *ChallengeService) ClaimWeeklyStreak(ctx context.Context, userID int64) (ClaimResult, error) {
	today := s.clock.Today()
	var total int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		stats, err := tx.LockStats(ctx, userID)
		if err != nil {
			return err
		}
		if stats.CurrentStreak < domain.WeeklyStreakTarget {
			return domain.RequirementNotMet("Weekly streak requirement not met (need 7 consecutive days)")
		}
		claimed, err := tx.ClaimFlag(ctx, userID, today, domain.FlagWeeklyStreak)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.AlreadyClaimed("Weekly streak bonus already claimed")
		}
		data := map[string]int{"streak": stats.CurrentStreak}
		total, err = activityAward(userID, domain.ActivityWeeklyStreak, "Claimed 7-Day Streak Bonus", WeeklyStreakBonus, data).apply(ctx, tx)
		return err
	})
	if err != nil {
		s.claimFailed(domain.FlagWeeklyStreak, err)
		return ClaimResult{}, err
	}

	s.observer.ChallengeClaimed(domain.FlagWeeklyStreak, ClaimAwarded)
	s.observer.PointsAwarded(string(domain.ActivityWeeklyStreak), WeeklyStreakBonus)
	return ClaimResult{
		Success:      true,
		Message:      "Weekly streak bonus claimed!",
		PointsEarned: WeeklyStreakBonus,
		TotalPoints:  total,
	}, nil
}

func (s *ChallengeService) claimFailed(flag domain.ChallengeFlag, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyClaimed):
		s.observer.ChallengeClaimed(flag, ClaimAlreadyClaimed)
	case errors.Is(err, domain.ErrRequirementNotMet):
		s.observer.ChallengeClaimed(flag, ClaimNotEligible)
	}
}
