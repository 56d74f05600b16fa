package app

import (
	"context"
	"time"

	"greenplay-service/internal/domain"
)

// Store abstracts how users, scores and claims are persisted (in-memory, Postgres).
// Reads outside WithinTx are read-committed snapshots; no isolation against
// concurrent submissions is promised.
type Store interface {
	// WithinTx runs fn as one unit of work. Any error from fn, or a cancelled
	// context, rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetStats(ctx context.Context, userID int64) (domain.UserStats, error)
	GetDailyChallenge(ctx context.Context, userID int64, day time.Time) (domain.DailyChallenge, error)

	Leaderboard(ctx context.Context, q LeaderboardQuery) ([]domain.LeaderboardEntry, int, error)
	CountStudentsAbove(ctx context.Context, points int) (int, error)

	RecentScores(ctx context.Context, userID int64, limit int) ([]domain.ScoreRecord, error)
	ScoreSummaries(ctx context.Context, userID int64) ([]ScoreSummary, error)
	DailyGameCounts(ctx context.Context, userID int64, since time.Time) ([]DailyCount, error)
	RecentActivities(ctx context.Context, userID int64, limit int) ([]domain.Activity, error)

	ListUsers(ctx context.Context, q UserQuery) ([]UserSummary, int, error)
	PlatformStats(ctx context.Context, since time.Time) (PlatformStats, error)
	UserIDs(ctx context.Context) ([]int64, error)
}

// Tx is the write side of a single unit of work. LockUser and LockStats take
// row locks that are held until commit; callers lock the user row first.
type Tx interface {
	CreateUser(ctx context.Context, user *domain.User) error
	LockUser(ctx context.Context, id int64) (domain.User, error)
	LockStats(ctx context.Context, userID int64) (domain.UserStats, error)
	SaveStats(ctx context.Context, stats domain.UserStats) error

	// AddPoints increments totalPoints and returns the new total.
	AddPoints(ctx context.Context, userID int64, delta int) (int, error)
	SetTotalPoints(ctx context.Context, userID int64, total int) error
	// LedgerTotal sums the user's score records and activity entries.
	LedgerTotal(ctx context.Context, userID int64) (int, error)
	// GameTallies replays the per-game counters: plays and points from score
	// records, plus quiz_answer activity points for the quiz.
	GameTallies(ctx context.Context, userID int64) (map[domain.GameType]GameTally, error)

	InsertScore(ctx context.Context, score *domain.ScoreRecord) error
	InsertActivity(ctx context.Context, activity *domain.Activity) error

	// ClaimFlag raises flag on the (user, day) row, creating the row if
	// needed. It reports false, without writing, when the flag was already set.
	ClaimFlag(ctx context.Context, userID int64, day time.Time, flag domain.ChallengeFlag) (bool, error)

	UpdateRole(ctx context.Context, userID int64, role domain.Role) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	DeleteUser(ctx context.Context, userID int64) error
}

// GameTally is one game type's replayed counters.
type GameTally struct {
	Games  int
	Points int
}

// QuestionRepository serves the static quiz catalog (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	RandomQuestions(ctx context.Context, n int) ([]domain.Question, error)
}

// QuestionLoader reads the whole catalog from its backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// Observer receives business events for metrics.
type Observer interface {
	GameSubmitted(game domain.GameType, points int)
	PointsAwarded(source string, points int)
	ChallengeClaimed(challenge domain.ChallengeFlag, outcome string)
}

type nopObserver struct{}

func (nopObserver) GameSubmitted(domain.GameType, int) {}
func (nopObserver) PointsAwarded(string, int) {}
func (nopObserver) ChallengeClaimed(domain.ChallengeFlag, string) {}

// LeaderboardQuery selects students ordered by totalPoints desc, createdAt asc.
type LeaderboardQuery struct {
	Search  string
	Faculty *domain.FacultyFilter
	Limit   int
	Offset  int
}

// UserQuery pages through all users for administration.
type UserQuery struct {
	Role   domain.Role
	Limit  int
	Offset int
}

// UserSummary is a user row joined with its play totals.
type UserSummary struct {
	domain.User
	GamesPlayed   int `json:"gamesPlayed"`
	CurrentStreak int `json:"currentStreak"`
}

// ScoreSummary aggregates a user's score records for one game.
type ScoreSummary struct {
	GameType domain.GameType `json:"gameType"`
	Best     int             `json:"best"`
	Average  float64         `json:"average"`
	Count    int             `json:"count"`
}

// DailyCount is the number of games played on one date.
type DailyCount struct {
	Date        time.Time `json:"date"`
	GamesPlayed int       `json:"gamesPlayed"`
}

// FacultyPoints is a faculty's summed student points.
type FacultyPoints struct {
	Faculty     string `json:"faculty"`
	TotalPoints int    `json:"totalPoints"`
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalUsers           int                     `json:"totalUsers"`
	TotalAdmins          int                     `json:"totalAdmins"`
	TotalPoints          int                     `json:"totalPoints"`
	TotalGames           int                     `json:"totalGames"`
	GamesByType          map[domain.GameType]int `json:"gamesByType"`
	AveragePointsPerUser float64                 `json:"averagePointsPerUser"`
	RecentRegistrations  int                     `json:"recentRegistrations"`
	ActiveUsers          int                     `json:"activeUsers"`
	TopFaculties         []FacultyPoints         `json:"topFaculties"`
}
