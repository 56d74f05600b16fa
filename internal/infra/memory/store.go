package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Transactions are
// serialized and work on a copy that replaces the live state on commit.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is test-only for deterministic timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{st: newState(), now: now}
}

type challengeKey struct {
	userID int64
	day    string
}

type state struct {
	nextUserID     int64
	nextScoreID    int64
	nextActivityID int64

	users      map[int64]domain.User
	stats      map[int64]domain.UserStats
	scores     []domain.ScoreRecord
	activities []domain.Activity
	challenges map[challengeKey]domain.DailyChallenge
}

func newState() *state {
	return &state{
		users:      make(map[int64]domain.User),
		stats:      make(map[int64]domain.UserStats),
		challenges: make(map[challengeKey]domain.DailyChallenge),
	}
}

func (s *state) clone() *state {
	c := &state{
		nextUserID:     s.nextUserID,
		nextScoreID:    s.nextScoreID,
		nextActivityID: s.nextActivityID,
		users:          make(map[int64]domain.User, len(s.users)),
		stats:          make(map[int64]domain.UserStats, len(s.stats)),
		scores:         append([]domain.ScoreRecord(nil), s.scores...),
		activities:     append([]domain.Activity(nil), s.activities...),
		challenges:     make(map[challengeKey]domain.DailyChallenge, len(s.challenges)),
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	for id, st := range s.stats {
		c.stats[id] = st.Clone()
	}
	for k, v := range s.challenges {
		c.challenges[k] = v
	}
	return c
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WithinTx runs fn against a private copy of the state. The copy becomes the
// live state only if fn succeeds and ctx is still alive.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Persistence("begin transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Persistence("commit transaction", err)
	}
	s.st = work
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.st.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFound("user")
}

func (s *Store) GetStats(_ context.Context, userID int64) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.st.stats[userID]
	if !ok {
		return domain.UserStats{}, domain.NotFound("user stats")
	}
	return st.Clone(), nil
}

func (s *Store) GetDailyChallenge(_ context.Context, userID int64, day time.Time) (domain.DailyChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.st.challenges[challengeKey{userID, dayKey(day)}]; ok {
		return entry, nil
	}
	return domain.DailyChallenge{UserID: userID, Date: domain.Day(day)}, nil
}

func (s *Store) Leaderboard(_ context.Context, q app.LeaderboardQuery) ([]domain.LeaderboardEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	var matched []domain.User
	for _, u := range s.st.users {
		if u.Role != domain.RoleStudent {
			continue
		}
		if search != "" && !matchesSearch(u, search) {
			continue
		}
		if q.Faculty != nil && !q.Faculty.Matches(u.Faculty) {
			continue
		}
		matched = append(matched, u)
	}
	sortRanked(matched)

	total := len(matched)
	matched = page(matched, q.Offset, q.Limit)
	entries := make([]domain.LeaderboardEntry, 0, len(matched))
	for _, u := range matched {
		st := s.st.stats[u.ID]
		entries = append(entries, domain.LeaderboardEntry{
			UserID:        u.ID,
			Name:          u.Name(),
			Email:         u.Email,
			Faculty:       u.Faculty,
			TotalPoints:   u.TotalPoints,
			GamesPlayed:   st.TotalGames(),
			CurrentStreak: st.CurrentStreak,
		})
	}
	return entries, total, nil
}

func matchesSearch(u domain.User, search string) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.Name(), u.Email} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// sortRanked orders by points desc, then earliest registration.
func sortRanked(users []domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) CountStudentsAbove(_ context.Context, points int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.st.users {
		if u.Role == domain.RoleStudent && u.TotalPoints > points {
			n++
		}
	}
	return n, nil
}

func (s *Store) RecentScores(_ context.Context, userID int64, limit int) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ScoreRecord
	for _, rec := range s.st.scores {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PlayedAt.Equal(out[j].PlayedAt) {
			return out[i].PlayedAt.After(out[j].PlayedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, 0, limit), nil
}

func (s *Store) ScoreSummaries(_ context.Context, userID int64) ([]app.ScoreSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc := make(map[domain.GameType]*app.ScoreSummary)
	sums := make(map[domain.GameType]int)
	for _, rec := range s.st.scores {
		if rec.UserID != userID {
			continue
		}
		sum, ok := acc[rec.GameType]
		if !ok {
			sum = &app.ScoreSummary{GameType: rec.GameType, Best: rec.PointsEarned}
			acc[rec.GameType] = sum
		}
		if rec.PointsEarned > sum.Best {
			sum.Best = rec.PointsEarned
		}
		sum.Count++
		sums[rec.GameType] += rec.PointsEarned
	}
	var out []app.ScoreSummary
	for _, g := range domain.GameTypes {
		if sum, ok := acc[g]; ok {
			sum.Average = float64(sums[g]) / float64(sum.Count)
			out = append(out, *sum)
		}
	}
	return out, nil
}

func (s *Store) DailyGameCounts(_ context.Context, userID int64, since time.Time) ([]app.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	days := make(map[string]time.Time)
	for _, rec := range s.st.scores {
		if rec.UserID != userID || rec.PlayedAt.Before(since) {
			continue
		}
		k := dayKey(rec.PlayedAt)
		counts[k]++
		days[k] = domain.Day(rec.PlayedAt)
	}
	out := make([]app.DailyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, app.DailyCount{Date: days[k], GamesPlayed: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) RecentActivities(_ context.Context, userID int64, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Activity
	for _, a := range s.st.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, 0, limit), nil
}

func (s *Store) ListUsers(_ context.Context, q app.UserQuery) ([]app.UserSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []domain.User
	for _, u := range s.st.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	total := len(users)
	users = page(users, q.Offset, q.Limit)
	out := make([]app.UserSummary, 0, len(users))
	for _, u := range users {
		st := s.st.stats[u.ID]
		out = append(out, app.UserSummary{User: u, GamesPlayed: st.TotalGames(), CurrentStreak: st.CurrentStreak})
	}
	return out, total, nil
}

func (s *Store) PlatformStats(_ context.Context, since time.Time) (app.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := app.PlatformStats{GamesByType: make(map[domain.GameType]int, len(domain.GameTypes))}
	for _, g := range domain.GameTypes {
		out.GamesByType[g] = 0
	}

	faculties := make(map[string]int)
	for _, u := range s.st.users {
		if u.Role == domain.RoleAdmin {
			out.TotalAdmins++
			continue
		}
		out.TotalUsers++
		out.TotalPoints += u.TotalPoints
		if !u.CreatedAt.Before(since) {
			out.RecentRegistrations++
		}
		if u.Faculty != "" {
			faculties[u.Faculty] += u.TotalPoints
		}
	}
	if out.TotalUsers > 0 {
		out.AveragePointsPerUser = math.Round(float64(out.TotalPoints)/float64(out.TotalUsers)*100) / 100
	}

	active := make(map[int64]struct{})
	for _, rec := range s.st.scores {
		out.TotalGames++
		out.GamesByType[rec.GameType]++
		if !rec.PlayedAt.Before(since) {
			active[rec.UserID] = struct{}{}
		}
	}
	out.ActiveUsers = len(active)

	for name, pts := range faculties {
		out.TopFaculties = append(out.TopFaculties, app.FacultyPoints{Faculty: name, TotalPoints: pts})
	}
	sort.Slice(out.TopFaculties, func(i, j int) bool {
		a, b := out.TopFaculties[i], out.TopFaculties[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		return a.Faculty < b.Faculty
	})
	out.TopFaculties = page(out.TopFaculties, 0, 5)
	return out, nil
}

func (s *Store) UserIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.st.users))
	for id := range s.st.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// tx mutates the private copy owned by one WithinTx call.
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) CreateUser(_ context.Context, user *domain.User) error {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.Conflict("email already registered")
		}
		if user.StudentID != "" && u.StudentID == user.StudentID {
			return domain.Conflict("student ID already registered")
		}
	}
	t.st.nextUserID++
	user.ID = t.st.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = t.now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if user.Role == "" {
		user.Role = domain.RoleStudent
	}
	t.st.users[user.ID] = *user
	t.st.stats[user.ID] = domain.NewUserStats(user.ID)
	return nil
}

func (t *tx) LockUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user")
	}
	return u, nil
}

func (t *tx) LockStats(_ context.Context, userID int64) (domain.UserStats, error) {
	st, ok := t.st.stats[userID]
	if !ok {
		return domain.UserStats{}, domain.NotFound("user stats")
	}
	return st.Clone(), nil
}

func (t *tx) SaveStats(_ context.Context, stats domain.UserStats) error {
	if _, ok := t.st.stats[stats.UserID]; !ok {
		return domain.NotFound("user stats")
	}
	t.st.stats[stats.UserID] = stats.Clone()
	return nil
}

func (t *tx) AddPoints(_ context.Context, userID int64, delta int) (int, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return 0, domain.NotFound("user")
	}
	u.TotalPoints += delta
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return u.TotalPoints, nil
}

func (t *tx) SetTotalPoints(_ context.Context, userID int64, total int) error {
	u, ok := t.st.users[userID]
	if !ok {
		return domain.NotFound("user")
	}
	u.TotalPoints = total
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return nil
}

func (t *tx) LedgerTotal(_ context.Context, userID int64) (int, error) {
	total := 0
	for _, rec := range t.st.scores {
		if rec.UserID == userID {
			total += rec.PointsEarned
		}
	}
	for _, a := range t.st.activities {
		if a.UserID == userID {
			total += a.Points
		}
	}
	return total, nil
}

func (t *tx) GameTallies(_ context.Context, userID int64) (map[domain.GameType]app.GameTally, error) {
	out := make(map[domain.GameType]app.GameTally, len(domain.GameTypes))
	for _, rec := range t.st.scores {
		if rec.UserID != userID {
			continue
		}
		tally := out[rec.GameType]
		tally.Games++
		tally.Points += rec.PointsEarned
		out[rec.GameType] = tally
	}
	for _, a := range t.st.activities {
		if a.UserID == userID && a.Kind.IsGameAward() {
			tally := out[domain.GameQuiz]
			tally.Points += a.Points
			out[domain.GameQuiz] = tally
		}
	}
	return out, nil
}

func (t *tx) InsertScore(_ context.Context, score *domain.ScoreRecord) error {
	if _, ok := t.st.users[score.UserID]; !ok {
		return domain.NotFound("user")
	}
	t.st.nextScoreID++
	score.ID = t.st.nextScoreID
	if score.PlayedAt.IsZero() {
		score.PlayedAt = t.now()
	}
	t.st.scores = append(t.st.scores, *score)
	return nil
}

func (t *tx) InsertActivity(_ context.Context, activity *domain.Activity) error {
	if _, ok := t.st.users[activity.UserID]; !ok {
		return domain.NotFound("user")
	}
	t.st.nextActivityID++
	activity.ID = t.st.nextActivityID
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = t.now()
	}
	t.st.activities = append(t.st.activities, *activity)
	return nil
}

func (t *tx) ClaimFlag(_ context.Context, userID int64, day time.Time, flag domain.ChallengeFlag) (bool, error) {
	key := challengeKey{userID, dayKey(day)}
	entry, ok := t.st.challenges[key]
	if !ok {
		entry = domain.DailyChallenge{UserID: userID, Date: domain.Day(day)}
	}
	if entry.Has(flag) {
		return false, nil
	}
	entry.Set(flag)
	t.st.challenges[key] = entry
	return true, nil
}

func (t *tx) UpdateRole(_ context.Context, userID int64, role domain.Role) error {
	u, ok := t.st.users[userID]
	if !ok {
		return domain.NotFound("user")
	}
	u.Role = role
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return nil
}

func (t *tx) UpdatePassword(_ context.Context, userID int64, hash string) error {
	u, ok := t.st.users[userID]
	if !ok {
		return domain.NotFound("user")
	}
	u.PasswordHash = hash
	u.UpdatedAt = t.now()
	t.st.users[userID] = u
	return nil
}

func (t *tx) DeleteUser(_ context.Context, userID int64) error {
	if _, ok := t.st.users[userID]; !ok {
		return domain.NotFound("user")
	}
	delete(t.st.users, userID)
	delete(t.st.stats, userID)

	scores := t.st.scores[:0]
	for _, rec := range t.st.scores {
		if rec.UserID != userID {
			scores = append(scores, rec)
		}
	}
	t.st.scores = scores

	activities := t.st.activities[:0]
	for _, a := range t.st.activities {
		if a.UserID != userID {
			activities = append(activities, a)
		}
	}
	t.st.activities = activities

	for k := range t.st.challenges {
		if k.userID == userID {
			delete(t.st.challenges, k)
		}
	}
	return nil
}
