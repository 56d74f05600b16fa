package app

import (
	"context"
	"math"

	"greenplay-service/internal/domain"
)

const (
	recentGamesLimit      = 10
	recentActivitiesLimit = 10
	activityWindowDays    = 7
)

// ProfileService assembles the read-only player views.
type ProfileService struct {
	store Store
	clock Clock
}

func NewProfileService(store Store, clock Clock) *ProfileService {
	return &ProfileService{store: store, clock: clock}
}

// Profile is a user with rank, counters and recent games.
type Profile struct {
	domain.User
	GlobalRank       int                     `json:"globalRank"`
	CurrentStreak    int                     `json:"currentStreak"`
	GamesPlayed      map[domain.GameType]int `json:"gamesPlayed"`
	TotalGamesPlayed int                     `json:"totalGamesPlayed"`
	PointsBreakdown  map[domain.GameType]int `json:"pointsBreakdown"`
	RecentGames      []domain.ScoreRecord    `json:"recentGames"`
}

// Profile returns userID's public profile.
func (s *ProfileService) Profile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	above, err := s.store.CountStudentsAbove(ctx, user.TotalPoints)
	if err != nil {
		return Profile{}, err
	}
	recent, err := s.store.RecentScores(ctx, userID, recentGamesLimit)
	if err != nil {
		return Profile{}, err
	}
	if recent == nil {
		recent = []domain.ScoreRecord{}
	}
	return Profile{
		User:             user,
		GlobalRank:       above + 1,
		CurrentStreak:    stats.CurrentStreak,
		GamesPlayed:      stats.GamesPlayed,
		TotalGamesPlayed: stats.TotalGames(),
		PointsBreakdown:  stats.Points,
		RecentGames:      recent,
	}, nil
}

// PlayerStats is the detailed statistics view.
type PlayerStats struct {
	GamesPlayed      map[domain.GameType]int     `json:"gamesPlayed"`
	PointsEarned     map[domain.GameType]int     `json:"pointsEarned"`
	BestScores       map[domain.GameType]int     `json:"bestScores"`
	AverageScores    map[domain.GameType]float64 `json:"averageScores"`
	CurrentStreak    int                         `json:"currentStreak"`
	DailyActivity    []DailyCount                `json:"dailyActivity"`
	RecentActivities []domain.Activity           `json:"recentActivities"`
}

// Stats returns per-game best and average points, the last week's daily
// play counts and recent bonus activity.
func (s *ProfileService) Stats(ctx context.Context, userID int64) (PlayerStats, error) {
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return PlayerStats{}, err
	}
	summaries, err := s.store.ScoreSummaries(ctx, userID)
	if err != nil {
		return PlayerStats{}, err
	}
	since := s.clock.Today().AddDate(0, 0, -(activityWindowDays - 1))
	daily, err := s.store.DailyGameCounts(ctx, userID, since)
	if err != nil {
		return PlayerStats{}, err
	}
	activities, err := s.store.RecentActivities(ctx, userID, recentActivitiesLimit)
	if err != nil {
		return PlayerStats{}, err
	}

	out := PlayerStats{
		GamesPlayed:      stats.GamesPlayed,
		PointsEarned:     stats.Points,
		BestScores:       make(map[domain.GameType]int, len(summaries)),
		AverageScores:    make(map[domain.GameType]float64, len(summaries)),
		CurrentStreak:    stats.CurrentStreak,
		DailyActivity:    daily,
		RecentActivities: activities,
	}
	for _, sum := range summaries {
		out.BestScores[sum.GameType] = sum.Best
		out.AverageScores[sum.GameType] = math.Round(sum.Average*100) / 100
	}
	if out.DailyActivity == nil {
		out.DailyActivity = []DailyCount{}
	}
	if out.RecentActivities == nil {
		out.RecentActivities = []domain.Activity{}
	}
	return out, nil
}

// Achievement is an unlocked badge.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Unlocked    bool   `json:"unlocked"`
}

type achievementRule struct {
	Achievement
	met func(user domain.User, stats domain.UserStats) bool
}

var achievementRules = []achievementRule{
	{
		Achievement: Achievement{ID: "points_1000", Name: "Sustainability Champion", Description: "Earned 1000 total points", Icon: "trophy"},
		met:         func(u domain.User, _ domain.UserStats) bool { return u.TotalPoints >= 1000 },
	},
	{
		Achievement: Achievement{ID: "points_500", Name: "Eco Warrior", Description: "Earned 500 total points", Icon: "medal"},
		met:         func(u domain.User, _ domain.UserStats) bool { return u.TotalPoints >= 500 },
	},
	{
		Achievement: Achievement{ID: "games_50", Name: "Dedicated Player", Description: "Played 50 games", Icon: "gamepad"},
		met:         func(_ domain.User, st domain.UserStats) bool { return st.TotalGames() >= 50 },
	},
	{
		Achievement: Achievement{ID: "streak_7", Name: "Weekly Warrior", Description: "7-day play streak", Icon: "fire"},
		met:         func(_ domain.User, st domain.UserStats) bool { return st.CurrentStreak >= domain.WeeklyStreakTarget },
	},
}

// Achievements lists the badges userID has unlocked.
func (s *ProfileService) Achievements(ctx context.Context, userID int64) ([]Achievement, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []Achievement{}
	for _, rule := range achievementRules {
		if rule.met(user, stats) {
			a := rule.Achievement
			a.Unlocked = true
			out = append(out, a)
		}
	}
	return out, nil
}

