package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/auth"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	redisinfra "assessment-service/internal/infra/redis"
	"assessment-service/internal/metrics"
	transport "assessment-service/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
	}

	var (
		repos  app.Repositories
		loader memory.ContentLoader
	)
	if cfg.Postgres.URL != "" {
		pool, store, err := connectPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		repos = app.Repositories{Sessions: store, Answers: store, Submissions: store}
		loader = store
	} else {
		logger.Warn("postgres not configured, serving the in-memory demo assessment")
		store := memory.NewStore()
		seedDemo(store)
		repos = app.Repositories{Sessions: store, Answers: store, Submissions: store}
		loader = store
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	duration := config.TTLDuration(cfg.Assessment.Duration, app.DefaultDuration)

	var (
		attempts  app.AttemptRegistry
		publisher app.EventPublisher
	)
	if redisClient != nil {
		repos.Content = redisinfra.NewContentCache(redisClient, loader, contentTTL)
		grace := config.TTLDuration(cfg.Redis.Grace, time.Minute)
		attempts = redisinfra.NewAttemptRegistry(redisClient, grace)
		publisher = redisinfra.NewEventPublisher(redisClient)
	} else {
		repos.Content = memory.NewContentCache(loader, contentTTL)
		attempts = memory.NewAttemptRegistry()
	}

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("jwt secret not configured, trusting the userId query parameter")
	}

	m := metrics.New()
	service := app.NewAssessmentService(repos, attempts, app.Options{
		Duration:     duration,
		TickInterval: config.TTLDuration(cfg.Assessment.TickInterval, time.Second),
		Identity:     auth.ContextIdentity{},
		Publisher:    publisher,
		Metrics:      m,
		Logger:       logger,
	})
	wsHandler := transport.NewWSHandler(service, logger.Named("ws"))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(wsHandler, verifier, m),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting assessment service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// countdowns stop here; sessions resume from their persisted start on the next Open
	service.Shutdown()
	return err
}

// seedDemo provides a minimal assessment and session for running without Postgres.
func seedDemo(store *memory.Store) {
	one, three := 1, 3
	store.PutContent(domain.Content{
		Assessment: domain.Assessment{ID: "demo", Title: "Demo assessment", Kind: "quiz", AutoGradable: true},
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Choices: []string{"4", "3", "5", "22"}, CorrectChoice: &one, Position: 1},
			{ID: "q2", Prompt: "Which planet is largest?", Choices: []string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectChoice: &three, Position: 2},
			{ID: "q3", Prompt: "Describe a closure in one sentence.", Position: 3},
		},
	})
	store.PutSession(domain.Session{ID: "demo-session", UserID: "demo-user", AssessmentID: "demo"})
}
