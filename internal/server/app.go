// Package server wires storage, services and transports into a runnable
// application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/server/config"
	"github.com/dmitrijs2005/rdkeeper/internal/server/files"
	"github.com/dmitrijs2005/rdkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/rdkeeper/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// MemoryDSN selects in-process repositories and object store.
const MemoryDSN = "memory://"

type App struct {
	config  *config.Config
	logger  logging.Logger
	grpc    *gs.GRPCServer
	metrics *metrics.Server
	closers []func() error
}

type backend struct {
	repos   repomanager.RepositoryManager
	store   objectstore.Store
	closers []func() error
}

// openPostgresBackend connects to Postgres and S3 and prepares both for use.
var openPostgresBackend = func(ctx context.Context, c *config.Config, logger logging.Logger) (*backend, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager(db)
	if err := repos.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 bucket: %w", err)
	}

	return &backend{repos: repos, store: store, closers: []func() error{db.Close}}, nil
}

func openMemoryBackend() *backend {
	return &backend{
		repos: repomanager.NewInMemoryRepositoryManager(),
		store: objectstore.NewMemoryStore(0),
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.SlogLevel())

	var (
		b   *backend
		err error
	)
	if strings.HasPrefix(c.DatabaseDSN, MemoryDSN) {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		b = openMemoryBackend()
	} else if b, err = openPostgresBackend(ctx, c, logger); err != nil {
		return nil, err
	}

	l := ledger.New(b.repos, logger)
	registry := metadata.NewCachedRegistry(b.repos.Extractors(), c.ExtractorCacheSize, c.ExtractorCacheTTL)
	services := gs.Services{
		Files:       files.NewService(b.repos, b.store, l, c.ConflictRetries, logger),
		Metadata:    metadata.NewEngine(b.repos, l, registry, metadata.NewDefinitionValidator(b.repos.Definitions()), logger),
		Extractors:  registry,
		Definitions: b.repos.Definitions(),
	}

	return &App{
		config:  c,
		logger:  logger,
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger, services, c.SecretKey, 0),
		metrics: metrics.NewServer(c.MetricsAddr, logger),
		closers: b.closers,
	}, nil
}

// Run serves gRPC and metrics until ctx is cancelled, a termination signal
// arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.metrics.Run(gctx) })

	err := g.Wait()
	for _, closeFn := range app.closers {
		if cerr := closeFn(); cerr != nil {
			app.logger.Error(ctx, "close failed", "error", cerr)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
