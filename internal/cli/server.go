package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"greenplay-service/internal/app"
	"greenplay-service/internal/config"
	"greenplay-service/internal/metrics"
	transport "greenplay-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	rt, err := openRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := seedCatalogIfEmpty(ctx, rt); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	m := metrics.New()
	clock := rt.clock()
	quiz := app.QuizSettings{
		PointsPerCorrect: cfg.Quiz.PointsPerCorrect,
		QuestionsPerGame: cfg.Quiz.QuestionsPerGame,
		TimeLimit:        config.TTLDuration(cfg.Quiz.TimeLimit, time.Minute),
	}
	board := app.NewLeaderboardService(rt.store, rt.faculties)
	feed := app.NewLeaderboardFeed(board, 10, config.TTLDuration(cfg.Server.FeedInterval, 5*time.Second)).
		WithLogger(log.WithField("component", "leaderboard_feed"))

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.Services{
		Accounts:    app.NewAccountService(rt.store, rt.tokens(), cfg.Auth.EmailDomain, clock),
		Games:       app.NewGameService(rt.store, rt.questions, clock, quiz, m),
		Challenges:  app.NewChallengeService(rt.store, clock, m),
		Leaderboard: board,
		Profiles:    app.NewProfileService(rt.store, clock),
		Admin:       app.NewAdminService(rt.store, clock),
	}, transport.RouterOptions{
		Log:     log,
		Feed:    feed,
		Metrics: m,
		Ping:    rt.ping,
	})

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go func() {
		if err := feed.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("leaderboard feed stopped")
		}
	}()
	if rt.db != nil {
		go recordPoolStats(runCtx, rt, m)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.WithField("port", finalPort).Info("starting greenplay service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func recordPoolStats(ctx context.Context, rt *runtime, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		m.RecordDBPoolStats(rt.db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
