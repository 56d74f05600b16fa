package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"greenplay-service/internal/app"
	"greenplay-service/internal/auth"
	"greenplay-service/internal/catalog"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/postgres"
	pgmigrations "greenplay-service/internal/infra/postgres/migrations"
	infraredis "greenplay-service/internal/infra/redis"
)

type env struct {
	db       *bun.DB
	store    *postgres.Store
	loader   *postgres.QuestionLoader
	accounts *app.AccountService
	games    *app.GameService
	claims   *app.ChallengeService
	board    *app.LeaderboardService
	admin    *app.AdminService
	ledger   *app.LedgerService
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := migrateDB(t, ctx, pgURL)
	t.Cleanup(func() { db.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	loader := postgres.NewQuestionLoader(pool)
	questions, err := catalog.Questions()
	require.NoError(t, err)
	_, err = loader.SeedQuestions(ctx, questions)
	require.NoError(t, err)

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	clock := app.SystemClock(time.UTC)
	store := postgres.NewStore(db, time.UTC)
	cache := infraredis.NewQuestionCache(redisClient, loader, 5*time.Minute)
	dir, err := domain.NewFacultyDirectory(domain.Faculties, domain.DefaultFacultyAliases)
	require.NoError(t, err)
	quiz := app.QuizSettings{PointsPerCorrect: 10, QuestionsPerGame: 5, TimeLimit: time.Minute}

	return &env{
		db:       db,
		store:    store,
		loader:   loader,
		accounts: app.NewAccountService(store, auth.NewTokenManager("it-secret", time.Hour), "mmu.edu.my", clock),
		games:    app.NewGameService(store, cache, clock, quiz, nil),
		claims:   app.NewChallengeService(store, clock, nil),
		board:    app.NewLeaderboardService(store, dir),
		admin:    app.NewAdminService(store, clock),
		ledger:   app.NewLedgerService(store),
	}
}

func (e *env) register(t *testing.T, email, studentID, faculty string) domain.User {
	t.Helper()
	s, err := e.accounts.Register(context.Background(), app.Registration{
		Email:     email,
		Password:  "Green!Play1",
		FirstName: strings.Split(email, "@")[0],
		LastName:  "Tester",
		StudentID: studentID,
		Faculty:   faculty,
	})
	require.NoError(t, err)
	return s.User
}

func TestSubmissionsAndClaimsAgainstPostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	aina := e.register(t, "aina@mmu.edu.my", "1211100001", "Faculty of Computing")
	badrul := e.register(t, "badrul@mmu.edu.my", "1211100002", "FOE")

	_, err := e.accounts.Register(ctx, app.Registration{
		Email: "AINA@mmu.edu.my", Password: "Green!Play1", FirstName: "A", LastName: "B", StudentID: "x", Faculty: "FCI",
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "email uniqueness is case-insensitive")

	res, err := e.games.SubmitMemory(ctx, aina.ID, domain.MemoryResult{Moves: 18, TimeTaken: 70, Level: 1})
	require.NoError(t, err)
	assert.Equal(t, 70, res.Points)
	assert.Equal(t, 20, res.DailyBonus)
	assert.Equal(t, 90, res.TotalPoints)
	assert.Equal(t, 1, res.CurrentStreak)

	// concurrent claims: the guarded upsert lets exactly one through
	var wg sync.WaitGroup
	var mu sync.Mutex
	awarded, already := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.claims.ClaimDailyLogin(ctx, aina.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				awarded++
			case errors.Is(err, domain.ErrAlreadyClaimed):
				already++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, awarded)
	assert.Equal(t, 7, already)

	// concurrent submissions serialize on the user row
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.games.SubmitPuzzle(ctx, badrul.ID, domain.PuzzleResult{Moves: 40, TimeTaken: 100})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := e.store.GetUser(ctx, badrul.ID)
	require.NoError(t, err)
	assert.Equal(t, 6*55+20, u.TotalPoints)
	st, err := e.store.GetStats(ctx, badrul.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, st.GamesPlayed[domain.GamePuzzle])
	assert.Equal(t, 6*55, st.Points[domain.GamePuzzle])

	_, err = e.claims.ClaimWeeklyStreak(ctx, aina.ID)
	assert.ErrorIs(t, err, domain.ErrRequirementNotMet)

	round, err := e.games.Questions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, round.Questions, 3)
	check, err := e.games.AnswerQuestion(ctx, aina.ID, 1, 3)
	require.NoError(t, err)
	assert.True(t, check.IsCorrect)
	assert.Equal(t, 110, check.TotalPoints)

	drifts, err := e.ledger.Recompute(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts, "totals match the ledgers")

	lb, err := e.board.Global(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, badrul.ID, lb.Entries[0].UserID)
	assert.Equal(t, 6, lb.Entries[0].GamesPlayed)

	fci, err := e.board.Faculty(ctx, "FCI", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, fci.Entries, 1)
	assert.Equal(t, aina.ID, fci.Entries[0].UserID)

	found, err := e.board.Search(ctx, "BADR")
	require.NoError(t, err)
	require.Len(t, found, 1)

	rank, err := e.board.Rank(ctx, aina.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)

	stats, err := e.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 7, stats.TotalGames)
	assert.Equal(t, 2, stats.ActiveUsers)
}

func TestRecomputeRepairsDriftAndDeleteCascades(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	u := e.register(t, "aina@mmu.edu.my", "1211100001", "FCI")
	_, err := e.games.SubmitSorting(ctx, u.ID, domain.SortingResult{CorrectSorts: 10, TotalItems: 10, TimeTaken: 25, Level: 2})
	require.NoError(t, err)

	_, err = e.games.AnswerQuestion(ctx, u.ID, 1, 3)
	require.NoError(t, err)

	_, err = e.db.NewUpdate().Table("users").Set("total_points = 1").Where("id = ?", u.ID).Exec(ctx)
	require.NoError(t, err)
	_, err = e.db.NewUpdate().Table("user_stats").
		Set("sorting_points = 0").
		Set("sorting_games_played = 4").
		Set("quiz_points = 300").
		Where("user_id = ?", u.ID).
		Exec(ctx)
	require.NoError(t, err)

	drifts, err := e.ledger.Recompute(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, 65+20+10, drifts[0].Ledger)
	assert.True(t, drifts[0].StatsRepaired)

	got, err := e.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, got.TotalPoints)
	st, err := e.store.GetStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GamesPlayed[domain.GameSorting])
	assert.Equal(t, 65, st.Points[domain.GameSorting])
	assert.Equal(t, 10, st.Points[domain.GameQuiz])

	drifts, err = e.ledger.Recompute(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	root := e.register(t, "root@mmu.edu.my", "ROOT", "FCI")
	require.NoError(t, e.admin.DeleteUser(ctx, root.ID, u.ID))
	for _, table := range []string{"user_stats", "game_scores", "recent_activities", "daily_challenges"} {
		n, err := e.db.NewSelect().Table(table).Where("user_id = ?", u.ID).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, table)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "greenplay", "POSTGRES_PASSWORD": "greenpass", "POSTGRES_DB": "greenplay"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://greenplay:greenpass@%s:%s/greenplay?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
