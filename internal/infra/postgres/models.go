package postgres

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"greenplay-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Email        string    `bun:"email,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	FirstName    string    `bun:"first_name,notnull"`
	LastName     string    `bun:"last_name,notnull"`
	StudentID    string    `bun:"student_id,notnull"`
	Faculty      string    `bun:"faculty,notnull"`
	Role         string    `bun:"role,notnull"`
	TotalPoints  int       `bun:"total_points,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUserRow(u domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		StudentID:    u.StudentID,
		Faculty:      u.Faculty,
		Role:         string(u.Role),
		TotalPoints:  u.TotalPoints,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		StudentID:    r.StudentID,
		Faculty:      r.Faculty,
		Role:         domain.Role(r.Role),
		TotalPoints:  r.TotalPoints,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type statsRow struct {
	bun.BaseModel `bun:"table:user_stats,alias:s"`

	UserID             int64      `bun:"user_id,pk"`
	QuizGamesPlayed    int        `bun:"quiz_games_played,notnull"`
	MemoryGamesPlayed  int        `bun:"memory_games_played,notnull"`
	PuzzleGamesPlayed  int        `bun:"puzzle_games_played,notnull"`
	SortingGamesPlayed int        `bun:"sorting_games_played,notnull"`
	QuizPoints         int        `bun:"quiz_points,notnull"`
	MemoryPoints       int        `bun:"memory_points,notnull"`
	PuzzlePoints       int        `bun:"puzzle_points,notnull"`
	SortingPoints      int        `bun:"sorting_points,notnull"`
	CurrentStreak      int        `bun:"current_streak,notnull"`
	LastPlayedDate     *time.Time `bun:"last_played_date,type:date"`
}

func newStatsRow(s domain.UserStats) *statsRow {
	row := &statsRow{
		UserID:             s.UserID,
		QuizGamesPlayed:    s.GamesPlayed[domain.GameQuiz],
		MemoryGamesPlayed:  s.GamesPlayed[domain.GameMemory],
		PuzzleGamesPlayed:  s.GamesPlayed[domain.GamePuzzle],
		SortingGamesPlayed: s.GamesPlayed[domain.GameSorting],
		QuizPoints:         s.Points[domain.GameQuiz],
		MemoryPoints:       s.Points[domain.GameMemory],
		PuzzlePoints:       s.Points[domain.GamePuzzle],
		SortingPoints:      s.Points[domain.GameSorting],
		CurrentStreak:      s.CurrentStreak,
	}
	if s.LastPlayedDate != nil {
		// DATE column: store the civil date without a zone shift
		y, m, d := s.LastPlayedDate.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		row.LastPlayedDate = &day
	}
	return row
}

func (r statsRow) toDomain() domain.UserStats {
	s := domain.NewUserStats(r.UserID)
	s.GamesPlayed[domain.GameQuiz] = r.QuizGamesPlayed
	s.GamesPlayed[domain.GameMemory] = r.MemoryGamesPlayed
	s.GamesPlayed[domain.GamePuzzle] = r.PuzzleGamesPlayed
	s.GamesPlayed[domain.GameSorting] = r.SortingGamesPlayed
	s.Points[domain.GameQuiz] = r.QuizPoints
	s.Points[domain.GameMemory] = r.MemoryPoints
	s.Points[domain.GamePuzzle] = r.PuzzlePoints
	s.Points[domain.GameSorting] = r.SortingPoints
	s.CurrentStreak = r.CurrentStreak
	if r.LastPlayedDate != nil {
		d := *r.LastPlayedDate
		s.LastPlayedDate = &d
	}
	return s
}

type scoreRow struct {
	bun.BaseModel `bun:"table:game_scores,alias:gs"`

	ID           int64           `bun:"id,pk,autoincrement"`
	UserID       int64           `bun:"user_id,notnull"`
	GameType     string          `bun:"game_type,notnull"`
	Score        int             `bun:"score,notnull"`
	PointsEarned int             `bun:"points_earned,notnull"`
	GameData     json.RawMessage `bun:"game_data,type:jsonb"`
	PlayedAt     time.Time       `bun:"played_at,nullzero,notnull,default:current_timestamp"`
}

func (r scoreRow) toDomain() domain.ScoreRecord {
	return domain.ScoreRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		GameType:     domain.GameType(r.GameType),
		Score:        r.Score,
		PointsEarned: r.PointsEarned,
		Details:      r.GameData,
		PlayedAt:     r.PlayedAt,
	}
}

type activityRow struct {
	bun.BaseModel `bun:"table:recent_activities,alias:ra"`

	ID            int64           `bun:"id,pk,autoincrement"`
	UserID        int64           `bun:"user_id,notnull"`
	ActivityType  string          `bun:"activity_type,notnull"`
	ActivityTitle string          `bun:"activity_title,notnull"`
	PointsEarned  int             `bun:"points_earned,notnull"`
	ActivityData  json.RawMessage `bun:"activity_data,type:jsonb"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r activityRow) toDomain() domain.Activity {
	return domain.Activity{
		ID:        r.ID,
		UserID:    r.UserID,
		Kind:      domain.ActivityKind(r.ActivityType),
		Title:     r.ActivityTitle,
		Points:    r.PointsEarned,
		Data:      r.ActivityData,
		CreatedAt: r.CreatedAt,
	}
}

type challengeRow struct {
	bun.BaseModel `bun:"table:daily_challenges,alias:dc"`

	ID                       int64     `bun:"id,pk,autoincrement"`
	UserID                   int64     `bun:"user_id,notnull"`
	ChallengeDate            time.Time `bun:"challenge_date,type:date"`
	DailyLoginClaimed        bool      `bun:"daily_login_claimed,notnull"`
	GamePlayedToday          bool      `bun:"game_played_today,notnull"`
	WeeklyStreakBonusClaimed bool      `bun:"weekly_streak_bonus_claimed,notnull"`
}

// flagColumns whitelists the claim columns that may be interpolated into SQL.
var flagColumns = map[domain.ChallengeFlag]string{
	domain.FlagDailyLogin:   "daily_login_claimed",
	domain.FlagGamePlayed:   "game_played_today",
	domain.FlagWeeklyStreak: "weekly_streak_bonus_claimed",
}
