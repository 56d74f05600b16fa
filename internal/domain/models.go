package domain

import (
	"encoding/json"
	"time"
)

// Role is a user's access level.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// GameType names one of the four mini-games.
type GameType string

const (
	GameQuiz    GameType = "quiz"
	GameMemory  GameType = "memory"
	GamePuzzle  GameType = "puzzle"
	GameSorting GameType = "sorting"
)

// GameTypes lists every game in display order.
var GameTypes = []GameType{GameQuiz, GameMemory, GamePuzzle, GameSorting}

// User is a registered player. TotalPoints is a running sum maintained by
// the award path; it can be rebuilt from the score and activity ledgers.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	StudentID    string    `json:"studentId"`
	Faculty      string    `json:"faculty"`
	Role         Role      `json:"role"`
	TotalPoints  int       `json:"totalPoints"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Name is the display name used on leaderboards.
func (u User) Name() string {
	return u.FirstName + " " + u.LastName
}

// UserStats holds per-game counters and the play streak (1:1 with User).
type UserStats struct {
	UserID         int64            `json:"userId"`
	GamesPlayed    map[GameType]int `json:"gamesPlayed"`
	Points         map[GameType]int `json:"pointsEarned"`
	CurrentStreak  int              `json:"currentStreak"`
	LastPlayedDate *time.Time       `json:"lastPlayedDate,omitempty"`
}

// NewUserStats returns zeroed stats for userID.
func NewUserStats(userID int64) UserStats {
	s := UserStats{
		UserID:      userID,
		GamesPlayed: make(map[GameType]int, len(GameTypes)),
		Points:      make(map[GameType]int, len(GameTypes)),
	}
	for _, g := range GameTypes {
		s.GamesPlayed[g] = 0
		s.Points[g] = 0
	}
	return s
}

// TotalGames sums the four play counters.
func (s UserStats) TotalGames() int {
	total := 0
	for _, g := range GameTypes {
		total += s.GamesPlayed[g]
	}
	return total
}

// GamePoints sums the four point subtotals.
func (s UserStats) GamePoints() int {
	total := 0
	for _, g := range GameTypes {
		total += s.Points[g]
	}
	return total
}

// Clone returns a deep copy.
func (s UserStats) Clone() UserStats {
	c := NewUserStats(s.UserID)
	for g, v := range s.GamesPlayed {
		c.GamesPlayed[g] = v
	}
	for g, v := range s.Points {
		c.Points[g] = v
	}
	c.CurrentStreak = s.CurrentStreak
	if s.LastPlayedDate != nil {
		d := *s.LastPlayedDate
		c.LastPlayedDate = &d
	}
	return c
}

// ScoreRecord is an immutable entry of the game log.
type ScoreRecord struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	GameType     GameType        `json:"gameType"`
	Score        int             `json:"score"`
	PointsEarned int             `json:"points"`
	Details      json.RawMessage `json:"details,omitempty"`
	PlayedAt     time.Time       `json:"playedAt"`
}

// ActivityKind classifies activity ledger entries.
type ActivityKind string

const (
	ActivityQuizAnswer   ActivityKind = "quiz_answer"
	ActivityDailyLogin   ActivityKind = "daily_login"
	ActivityDailyGame    ActivityKind = "daily_game"
	ActivityWeeklyStreak ActivityKind = "weekly_streak"
)

// IsGameAward reports whether points of this kind belong to a game subtotal.
func (k ActivityKind) IsGameAward() bool {
	return k == ActivityQuizAnswer
}

// Activity records points awarded outside a ScoreRecord.
type Activity struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Kind      ActivityKind    `json:"type"`
	Title     string          `json:"title"`
	Points    int             `json:"points"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ChallengeFlag names one of the three per-day claim flags.
type ChallengeFlag string

const (
	FlagDailyLogin   ChallengeFlag = "daily_login_claimed"
	FlagGamePlayed   ChallengeFlag = "game_played_today"
	FlagWeeklyStreak ChallengeFlag = "weekly_streak_bonus_claimed"
)

// DailyChallenge is the per-(user, date) claim record. Each flag moves
// false to true at most once.
type DailyChallenge struct {
	UserID            int64     `json:"userId"`
	Date              time.Time `json:"date"`
	DailyLoginClaimed bool      `json:"dailyLoginClaimed"`
	GamePlayedToday   bool      `json:"gamePlayedToday"`
	WeeklyStreakBonus bool      `json:"weeklyStreakBonusClaimed"`
}

// Has reports the state of flag.
func (d DailyChallenge) Has(flag ChallengeFlag) bool {
	switch flag {
	case FlagDailyLogin:
		return d.DailyLoginClaimed
	case FlagGamePlayed:
		return d.GamePlayedToday
	case FlagWeeklyStreak:
		return d.WeeklyStreakBonus
	}
	return false
}

// Set raises flag.
func (d *DailyChallenge) Set(flag ChallengeFlag) {
	switch flag {
	case FlagDailyLogin:
		d.DailyLoginClaimed = true
	case FlagGamePlayed:
		d.GamePlayedToday = true
	case FlagWeeklyStreak:
		d.WeeklyStreakBonus = true
	}
}

// Question is a static quiz item; CorrectOption is 1-based.
type Question struct {
	ID            int64     `json:"id" yaml:"id"`
	Text          string    `json:"question" yaml:"question"`
	Options       [4]string `json:"options" yaml:"options"`
	CorrectOption int       `json:"correctOption" yaml:"correct"`
	Fact          string    `json:"fact" yaml:"fact"`
	Difficulty    string    `json:"difficulty" yaml:"difficulty"`
}

// PublicQuestion is a question without its answer.
type PublicQuestion struct {
	ID         int64     `json:"id"`
	Text       string    `json:"question"`
	Options    [4]string `json:"options"`
	Difficulty string    `json:"difficulty"`
}

// Public strips the answer and fact.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Text: q.Text, Options: q.Options, Difficulty: q.Difficulty}
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank          int    `json:"rank,omitempty"`
	UserID        int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Faculty       string `json:"faculty"`
	TotalPoints   int    `json:"totalPoints"`
	GamesPlayed   int    `json:"gamesPlayed"`
	CurrentStreak int    `json:"currentStreak"`
}

// Leaderboard is a page of ranked entries.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"leaderboard"`
	Faculty string             `json:"faculty,omitempty"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
}
