package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

// Store persists users, stats, ledgers and daily claims with bun. Writes
// run through WithinTx at read-committed isolation; LockUser and LockStats
// take row locks so concurrent submissions for one user serialize.
type Store struct {
	db  *bun.DB
	loc *time.Location
}

// NewStore returns a Store. loc decides which calendar day a timestamp
// belongs to in daily aggregates.
func NewStore(db *bun.DB, loc *time.Location) *Store {
	if loc == nil || loc == time.Local {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	err := s.db.RunInTx(ctx, opts, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &tx{db: btx})
	})
	return domain.Persistence("transaction", err)
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	if err := s.db.NewSelect().Model(&row).Where("u.id = ?", id).Scan(ctx); err != nil {
		return domain.User{}, wrap("user", "select user", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("lower(u.email) = lower(?)", strings.TrimSpace(email)).Scan(ctx)
	if err != nil {
		return domain.User{}, wrap("user", "select user by email", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	var row statsRow
	if err := s.db.NewSelect().Model(&row).Where("s.user_id = ?", userID).Scan(ctx); err != nil {
		return domain.UserStats{}, wrap("user stats", "select user stats", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetDailyChallenge(ctx context.Context, userID int64, day time.Time) (domain.DailyChallenge, error) {
	entry := domain.DailyChallenge{UserID: userID, Date: domain.Day(day)}
	var row challengeRow
	err := s.db.NewSelect().Model(&row).
		Where("dc.user_id = ?", userID).
		Where("dc.challenge_date = ?::date", civilDate(day)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return domain.DailyChallenge{}, domain.Persistence("select daily challenge", err)
	}
	entry.DailyLoginClaimed = row.DailyLoginClaimed
	entry.GamePlayedToday = row.GamePlayedToday
	entry.WeeklyStreakBonus = row.WeeklyStreakBonusClaimed
	return entry, nil
}

type rankedRow struct {
	ID            int64  `bun:"id"`
	FirstName     string `bun:"first_name"`
	LastName      string `bun:"last_name"`
	Email         string `bun:"email"`
	Faculty       string `bun:"faculty"`
	TotalPoints   int    `bun:"total_points"`
	GamesPlayed   int    `bun:"games_played"`
	CurrentStreak int    `bun:"current_streak"`
}

const gamesPlayedExpr = "COALESCE(s.quiz_games_played + s.memory_games_played + s.puzzle_games_played + s.sorting_games_played, 0)"

func (s *Store) Leaderboard(ctx context.Context, lq app.LeaderboardQuery) ([]domain.LeaderboardEntry, int, error) {
	q := s.db.NewSelect().
		TableExpr("users AS u").
		Join("LEFT JOIN user_stats AS s ON s.user_id = u.id").
		ColumnExpr("u.id, u.first_name, u.last_name, u.email, u.faculty, u.total_points").
		ColumnExpr(gamesPlayedExpr+" AS games_played").
		ColumnExpr("COALESCE(s.current_streak, 0) AS current_streak").
		Where("u.role = ?", string(domain.RoleStudent))

	if lq.Search != "" {
		like := "%" + escapeLike(strings.ToLower(lq.Search)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("lower(u.first_name) LIKE ?", like).
				WhereOr("lower(u.last_name) LIKE ?", like).
				WhereOr("lower(u.first_name || ' ' || u.last_name) LIKE ?", like).
				WhereOr("lower(u.email) LIKE ?", like)
		})
	}
	if f := lq.Faculty; f != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("lower(trim(u.faculty)) IN (?)", bun.In(f.Exact))
			for _, frag := range f.Contains {
				q = q.WhereOr("lower(u.faculty) LIKE ?", "%"+escapeLike(frag)+"%")
			}
			return q
		})
	}

	q = q.OrderExpr("u.total_points DESC, u.created_at ASC, u.id ASC")
	if lq.Limit > 0 {
		q = q.Limit(lq.Limit)
	}
	if lq.Offset > 0 {
		q = q.Offset(lq.Offset)
	}

	var rows []rankedRow
	total, err := q.ScanAndCount(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.Persistence("select leaderboard", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:        r.ID,
			Name:          r.FirstName + " " + r.LastName,
			Email:         r.Email,
			Faculty:       r.Faculty,
			TotalPoints:   r.TotalPoints,
			GamesPlayed:   r.GamesPlayed,
			CurrentStreak: r.CurrentStreak,
		})
	}
	return entries, total, nil
}

func (s *Store) CountStudentsAbove(ctx context.Context, points int) (int, error) {
	n, err := s.db.NewSelect().Model((*userRow)(nil)).
		Where("u.role = ?", string(domain.RoleStudent)).
		Where("u.total_points > ?", points).
		Count(ctx)
	if err != nil {
		return 0, domain.Persistence("count students above", err)
	}
	return n, nil
}

func (s *Store) RecentScores(ctx context.Context, userID int64, limit int) ([]domain.ScoreRecord, error) {
	var rows []scoreRow
	q := s.db.NewSelect().Model(&rows).Where("gs.user_id = ?", userID).OrderExpr("gs.played_at DESC, gs.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("select recent scores", err)
	}
	out := make([]domain.ScoreRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ScoreSummaries(ctx context.Context, userID int64) ([]app.ScoreSummary, error) {
	var rows []struct {
		GameType string  `bun:"game_type"`
		Best     int     `bun:"best"`
		Average  float64 `bun:"average"`
		Count    int     `bun:"count"`
	}
	err := s.db.NewSelect().Model((*scoreRow)(nil)).
		ColumnExpr("gs.game_type").
		ColumnExpr("MAX(gs.points_earned) AS best").
		ColumnExpr("AVG(gs.points_earned)::float8 AS average").
		ColumnExpr("COUNT(*) AS count").
		Where("gs.user_id = ?", userID).
		Group("gs.game_type").
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("select score summaries", err)
	}
	byGame := make(map[domain.GameType]app.ScoreSummary, len(rows))
	for _, r := range rows {
		g := domain.GameType(r.GameType)
		byGame[g] = app.ScoreSummary{GameType: g, Best: r.Best, Average: r.Average, Count: r.Count}
	}
	var out []app.ScoreSummary
	for _, g := range domain.GameTypes {
		if sum, ok := byGame[g]; ok {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (s *Store) DailyGameCounts(ctx context.Context, userID int64, since time.Time) ([]app.DailyCount, error) {
	var rows []struct {
		Day   string `bun:"day"`
		Games int    `bun:"games"`
	}
	err := s.db.NewSelect().Model((*scoreRow)(nil)).
		ColumnExpr("to_char(gs.played_at AT TIME ZONE ?, 'YYYY-MM-DD') AS day", s.loc.String()).
		ColumnExpr("COUNT(*) AS games").
		Where("gs.user_id = ?", userID).
		Where("gs.played_at >= ?", since).
		GroupExpr("day").
		OrderExpr("day ASC").
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("select daily game counts", err)
	}
	out := make([]app.DailyCount, 0, len(rows))
	for _, r := range rows {
		day, err := time.ParseInLocation("2006-01-02", r.Day, s.loc)
		if err != nil {
			return nil, domain.Persistence("parse daily game counts", err)
		}
		out = append(out, app.DailyCount{Date: day, GamesPlayed: r.Games})
	}
	return out, nil
}

func (s *Store) RecentActivities(ctx context.Context, userID int64, limit int) ([]domain.Activity, error) {
	var rows []activityRow
	q := s.db.NewSelect().Model(&rows).Where("ra.user_id = ?", userID).OrderExpr("ra.created_at DESC, ra.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("select recent activities", err)
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type userSummaryRow struct {
	userRow `bun:",extend"`

	GamesPlayed   int `bun:"games_played,scanonly"`
	CurrentStreak int `bun:"current_streak,scanonly"`
}

func (s *Store) ListUsers(ctx context.Context, uq app.UserQuery) ([]app.UserSummary, int, error) {
	var rows []userSummaryRow
	q := s.db.NewSelect().Model(&rows).
		ColumnExpr("u.*").
		ColumnExpr(gamesPlayedExpr+" AS games_played").
		ColumnExpr("COALESCE(s.current_streak, 0) AS current_streak").
		Join("LEFT JOIN user_stats AS s ON s.user_id = u.id").
		OrderExpr("u.created_at DESC, u.id DESC")
	if uq.Role != "" {
		q = q.Where("u.role = ?", string(uq.Role))
	}
	if uq.Limit > 0 {
		q = q.Limit(uq.Limit)
	}
	if uq.Offset > 0 {
		q = q.Offset(uq.Offset)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.Persistence("select users", err)
	}
	out := make([]app.UserSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, app.UserSummary{User: r.toDomain(), GamesPlayed: r.GamesPlayed, CurrentStreak: r.CurrentStreak})
	}
	return out, total, nil
}

func (s *Store) PlatformStats(ctx context.Context, since time.Time) (app.PlatformStats, error) {
	out := app.PlatformStats{GamesByType: make(map[domain.GameType]int, len(domain.GameTypes))}
	for _, g := range domain.GameTypes {
		out.GamesByType[g] = 0
	}

	var totals struct {
		Students    int `bun:"students"`
		Admins      int `bun:"admins"`
		TotalPoints int `bun:"total_points"`
		Recent      int `bun:"recent"`
	}
	err := s.db.NewRaw(`
		SELECT
			COUNT(*) FILTER (WHERE role = 'student') AS students,
			COUNT(*) FILTER (WHERE role = 'admin') AS admins,
			COALESCE(SUM(total_points) FILTER (WHERE role = 'student'), 0) AS total_points,
			COUNT(*) FILTER (WHERE role = 'student' AND created_at >= ?) AS recent
		FROM users`, since).Scan(ctx, &totals)
	if err != nil {
		return app.PlatformStats{}, domain.Persistence("select platform totals", err)
	}
	out.TotalUsers = totals.Students
	out.TotalAdmins = totals.Admins
	out.TotalPoints = totals.TotalPoints
	out.RecentRegistrations = totals.Recent
	if totals.Students > 0 {
		out.AveragePointsPerUser = float64(int(float64(totals.TotalPoints)/float64(totals.Students)*100+0.5)) / 100
	}

	var games []struct {
		GameType string `bun:"game_type"`
		Games    int    `bun:"games"`
	}
	err = s.db.NewRaw(`SELECT game_type, COUNT(*) AS games FROM game_scores GROUP BY game_type`).Scan(ctx, &games)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return app.PlatformStats{}, domain.Persistence("select games by type", err)
	}
	for _, g := range games {
		out.GamesByType[domain.GameType(g.GameType)] = g.Games
		out.TotalGames += g.Games
	}

	err = s.db.NewRaw(`SELECT COUNT(DISTINCT user_id) FROM game_scores WHERE played_at >= ?`, since).Scan(ctx, &out.ActiveUsers)
	if err != nil {
		return app.PlatformStats{}, domain.Persistence("select active users", err)
	}

	err = s.db.NewRaw(`
		SELECT faculty, SUM(total_points) AS total_points
		FROM users
		WHERE role = 'student' AND faculty <> ''
		GROUP BY faculty
		ORDER BY total_points DESC, faculty ASC
		LIMIT 5`).Scan(ctx, &out.TopFaculties)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return app.PlatformStats{}, domain.Persistence("select top faculties", err)
	}
	return out, nil
}

func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().Model((*userRow)(nil)).Column("id").OrderExpr("u.id ASC").Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("select user ids", err)
	}
	return ids, nil
}

// tx implements app.Tx on top of a bun transaction.
type tx struct {
	db bun.Tx
}

func (t *tx) CreateUser(ctx context.Context, user *domain.User) error {
	row := newUserRow(*user)
	row.ID = 0
	if row.Role == "" {
		row.Role = string(domain.RoleStudent)
	}
	if _, err := t.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return domain.Persistence("insert user", err)
	}
	if _, err := t.db.NewInsert().Model(&statsRow{UserID: row.ID}).Exec(ctx); err != nil {
		return domain.Persistence("insert user stats", err)
	}
	*user = row.toDomain()
	return nil
}

func (t *tx) LockUser(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	if err := t.db.NewSelect().Model(&row).Where("u.id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return domain.User{}, wrap("user", "lock user", err)
	}
	return row.toDomain(), nil
}

func (t *tx) LockStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	var row statsRow
	if err := t.db.NewSelect().Model(&row).Where("s.user_id = ?", userID).For("UPDATE").Scan(ctx); err != nil {
		return domain.UserStats{}, wrap("user stats", "lock user stats", err)
	}
	return row.toDomain(), nil
}

func (t *tx) SaveStats(ctx context.Context, stats domain.UserStats) error {
	res, err := t.db.NewUpdate().Model(newStatsRow(stats)).WherePK().Exec(ctx)
	if err != nil {
		return domain.Persistence("update user stats", err)
	}
	return expectRow(res, "user stats")
}

func (t *tx) AddPoints(ctx context.Context, userID int64, delta int) (int, error) {
	var total int
	err := t.db.NewUpdate().Model((*userRow)(nil)).
		Set("total_points = total_points + ?", delta).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Returning("total_points").
		Scan(ctx, &total)
	if err != nil {
		return 0, wrap("user", "add points", err)
	}
	return total, nil
}

func (t *tx) SetTotalPoints(ctx context.Context, userID int64, total int) error {
	res, err := t.db.NewUpdate().Model((*userRow)(nil)).
		Set("total_points = ?", total).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return domain.Persistence("set total points", err)
	}
	return expectRow(res, "user")
}

func (t *tx) LedgerTotal(ctx context.Context, userID int64) (int, error) {
	var total int
	err := t.db.NewRaw(`
		SELECT
			COALESCE((SELECT SUM(points_earned) FROM game_scores WHERE user_id = ?0), 0) +
			COALESCE((SELECT SUM(points_earned) FROM recent_activities WHERE user_id = ?0), 0)`, userID).
		Scan(ctx, &total)
	if err != nil {
		return 0, domain.Persistence("sum ledger", err)
	}
	return total, nil
}

func (t *tx) GameTallies(ctx context.Context, userID int64) (map[domain.GameType]app.GameTally, error) {
	var rows []struct {
		GameType string `bun:"game_type"`
		Games    int    `bun:"games"`
		Points   int    `bun:"points"`
	}
	err := t.db.NewRaw(`
		SELECT game_type, COUNT(*) AS games, COALESCE(SUM(points_earned), 0) AS points
		FROM game_scores
		WHERE user_id = ?0
		GROUP BY game_type
		UNION ALL
		SELECT ?1::text, 0, COALESCE(SUM(points_earned), 0)
		FROM recent_activities
		WHERE user_id = ?0 AND activity_type = ?2`,
		userID, string(domain.GameQuiz), string(domain.ActivityQuizAnswer)).
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Persistence("tally games", err)
	}
	out := make(map[domain.GameType]app.GameTally, len(domain.GameTypes))
	for _, r := range rows {
		g := domain.GameType(r.GameType)
		tally := out[g]
		tally.Games += r.Games
		tally.Points += r.Points
		out[g] = tally
	}
	return out, nil
}

func (t *tx) InsertScore(ctx context.Context, score *domain.ScoreRecord) error {
	row := &scoreRow{
		UserID:       score.UserID,
		GameType:     string(score.GameType),
		Score:        score.Score,
		PointsEarned: score.PointsEarned,
		GameData:     score.Details,
		PlayedAt:     score.PlayedAt,
	}
	if _, err := t.db.NewInsert().Model(row).Returning("id, played_at").Exec(ctx); err != nil {
		return domain.Persistence("insert score", err)
	}
	score.ID = row.ID
	score.PlayedAt = row.PlayedAt
	return nil
}

func (t *tx) InsertActivity(ctx context.Context, activity *domain.Activity) error {
	row := &activityRow{
		UserID:        activity.UserID,
		ActivityType:  string(activity.Kind),
		ActivityTitle: activity.Title,
		PointsEarned:  activity.Points,
		ActivityData:  activity.Data,
		CreatedAt:     activity.CreatedAt,
	}
	if _, err := t.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return domain.Persistence("insert activity", err)
	}
	activity.ID = row.ID
	activity.CreatedAt = row.CreatedAt
	return nil
}

// ClaimFlag is a single guarded upsert: the conflict branch only fires while
// the flag is still false, so RowsAffected is the claim result even under
// concurrent callers.
func (t *tx) ClaimFlag(ctx context.Context, userID int64, day time.Time, flag domain.ChallengeFlag) (bool, error) {
	col, ok := flagColumns[flag]
	if !ok {
		return false, domain.Validation("unknown challenge %q", flag)
	}
	res, err := t.db.ExecContext(ctx, `
		INSERT INTO daily_challenges (user_id, challenge_date, ?0)
		VALUES (?1, ?2::date, TRUE)
		ON CONFLICT (user_id, challenge_date)
		DO UPDATE SET ?0 = TRUE
		WHERE daily_challenges.?0 = FALSE`,
		bun.Ident(col), userID, civilDate(day))
	if err != nil {
		return false, domain.Persistence("claim "+string(flag), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Persistence("claim "+string(flag), err)
	}
	return n == 1, nil
}

func (t *tx) UpdateRole(ctx context.Context, userID int64, role domain.Role) error {
	res, err := t.db.NewUpdate().Model((*userRow)(nil)).
		Set("role = ?", string(role)).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return domain.Persistence("update role", err)
	}
	return expectRow(res, "user")
}

func (t *tx) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	res, err := t.db.NewUpdate().Model((*userRow)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return domain.Persistence("update password", err)
	}
	return expectRow(res, "user")
}

// DeleteUser relies on ON DELETE CASCADE for stats, scores, activities and claims.
func (t *tx) DeleteUser(ctx context.Context, userID int64) error {
	res, err := t.db.NewDelete().Model((*userRow)(nil)).Where("id = ?", userID).Exec(ctx)
	if err != nil {
		return domain.Persistence("delete user", err)
	}
	return expectRow(res, "user")
}

func civilDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func wrap(entity, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity)
	}
	return domain.Persistence(op, err)
}

func expectRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Persistence("rows affected", err)
	}
	if n == 0 {
		return domain.NotFound(entity)
	}
	return nil
}

func uniqueViolation(err error) error {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) || pgErr.Field('C') != "23505" {
		return nil
	}
	if strings.Contains(pgErr.Field('n'), "student_id") {
		return domain.Conflict("student ID already registered")
	}
	return domain.Conflict("email already registered")
}
