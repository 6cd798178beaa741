// Package server initializes and runs the voice journal application server.
// It opens the database, runs migrations, wires services to the HTTP API,
// and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/auth"
	"github.com/dmitrijs2005/voicejournal/internal/server/config"
	"github.com/dmitrijs2005/voicejournal/internal/server/httpapi"
	"github.com/dmitrijs2005/voicejournal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicejournal/internal/server/services"
	"github.com/dmitrijs2005/voicejournal/internal/server/transcribe"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ctx := context.Background()

	if err := pingWithRetry(ctx, db); err != nil {
		return nil, fmt.Errorf("db unreachable: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, rm)
	es := services.NewEntryService(db, rm,
		transcribe.NewMock(cfg.TranscriptionDelay), logger)

	verifier := auth.NewJWTVerifier([]byte(cfg.SecretKey))
	hs := httpapi.NewServer(cfg.EndpointAddr, logger, verifier, us, es)

	return &App{config: cfg, logger: logger, db: db, httpServer: hs}, nil
}

// pingWithRetry probes the database with exponential backoff, giving a
// freshly started database container time to come up.
func pingWithRetry(ctx context.Context, db *sql.DB) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until an OS signal or a server failure, then releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	err := app.httpServer.Run(ctx)
	return multierr.Append(err, app.db.Close())
}
