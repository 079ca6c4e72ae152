package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"
	"resty.dev/v3"

	"taxthink-server/internal/config"
	"taxthink-server/internal/domain/advisor"
	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/database"
	_ "taxthink-server/internal/infrastructure/database/dbschema"
	"taxthink-server/internal/infrastructure/database/repository/taxsessionrepo"
	"taxthink-server/internal/infrastructure/llm"
	"taxthink-server/internal/infrastructure/logger"
	"taxthink-server/internal/infrastructure/memstore"
	"taxthink-server/internal/infrastructure/observability"
	"taxthink-server/internal/interfaces/httpserver"
)

// Application bundles the long-running pieces of the service.
type Application struct {
	httpServer *httpserver.HTTPServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HTTPServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.httpServer.Run(groupCtx)
	})
	return group.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	repository, err := newRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize store")
	}

	sessionService := taxsession.NewService(repository)

	completionClient := llm.NewClient(resty.New(), cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	advisorService := advisor.NewService(completionClient, cfg.OpenAIModel)

	httpServer := httpserver.New(cfg, log, sessionService, advisorService)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

// newRepository selects the store backend. The in-process store keeps data
// only for the process lifetime; postgres persists across restarts.
func newRepository(cfg *config.Config, log zerolog.Logger) (taxsession.Repository, error) {
	if cfg.IsMemoryStore() {
		log.Info().Msg("using in-memory store")
		return memstore.New(), nil
	}

	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnLifetime,
		LogLevel:    gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Info().Msg("using postgres store")
	return taxsessionrepo.NewTaxSessionGormRepository(db), nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
