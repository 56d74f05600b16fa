package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"greenplay-service/internal/app"
	"greenplay-service/internal/auth"
	"greenplay-service/internal/catalog"
	"greenplay-service/internal/config"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/memory"
	"greenplay-service/internal/infra/postgres"
	rediscache "greenplay-service/internal/infra/redis"
	"greenplay-service/internal/logging"
)

// runtime holds the backing infrastructure chosen from config: Postgres and
// Redis when configured, in-memory equivalents otherwise.
type runtime struct {
	cfg       config.Config
	log       *logrus.Entry
	loc       *time.Location
	faculties *domain.FacultyDirectory

	db     *bun.DB
	pool   *pgxpool.Pool
	redis  *redis.Client
	loader app.QuestionLoader

	store     app.Store
	questions app.QuestionRepository
}

func loadConfig(path string) (config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log := logging.New(cfg.App.Name, cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}

func openDB(cfg config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	if cfg.Postgres.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.Postgres.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

func openRuntime(ctx context.Context, cfg config.Config, log *logrus.Entry) (*runtime, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	faculties, err := cfg.FacultyDirectory()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, loc: loc, faculties: faculties}

	if cfg.Postgres.URL != "" {
		rt.db = openDB(cfg)
		if err := rt.db.PingContext(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		rt.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		rt.store = postgres.NewStore(rt.db, loc)
		rt.loader = postgres.NewQuestionLoader(rt.pool)
	} else {
		log.Warn("postgres url not configured; using in-memory store")
		seed, err := catalog.Questions()
		if err != nil {
			return nil, err
		}
		rt.store = memory.NewStore()
		rt.loader = memory.NewStaticQuestionLoader(seed)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		rt.questions = rediscache.NewQuestionCache(rt.redis, rt.loader, config.TTLDuration(cfg.Redis.TTL, quizTTL))
	} else {
		rt.questions = memory.NewQuestionCache(rt.loader, quizTTL)
	}
	return rt, nil
}

func (rt *runtime) clock() app.Clock {
	return app.SystemClock(rt.loc)
}

func (rt *runtime) tokens() *auth.TokenManager {
	return auth.NewTokenManager(rt.cfg.Auth.JWTSecret, config.TTLDuration(rt.cfg.Auth.TokenTTL, 24*time.Hour))
}

func (rt *runtime) ping(ctx context.Context) error {
	if rt.db == nil {
		return nil
	}
	return rt.db.PingContext(ctx)
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}
