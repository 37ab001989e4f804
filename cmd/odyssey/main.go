package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-wms/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-wms/internal/app"
	"github.com/odyssey-erp/odyssey-wms/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-wms/internal/audit/http"
	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	"github.com/odyssey-erp/odyssey-wms/internal/documents"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/observability"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
	"github.com/odyssey-erp/odyssey-wms/jobs"
)

const usage = `usage:
  odyssey [serve]
  odyssey migrate [up|down|status|version|redo]
  odyssey jobs trigger [-repair] <task>
  odyssey jobs stats`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger, os.Args[1:]); err != nil {
		logger.Error("odyssey", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 || args[0] == "serve" {
		return serve(ctx, cfg, logger)
	}
	switch args[0] {
	case "migrate":
		command := "up"
		if len(args) > 1 {
			command = args[1]
		}
		if err := db.Migrate(ctx, cfg.PGDSN, command); err != nil {
			return err
		}
		logger.Info("migration finished", slog.String("command", command))
		return nil
	case "jobs":
		return runJobs(ctx, cfg, logger, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("jobs: missing subcommand")
	}
	ops, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := ops.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		parsed, err := cli.ParseTriggerArgs(args[1:], os.Stderr)
		if err != nil {
			return err
		}
		info, err := ops.Trigger(ctx, parsed.Task, parsed.Repair)
		if err != nil {
			return err
		}
		logger.Info("job enqueued", slog.String("task", parsed.Task), slog.String("id", info.ID), slog.String("queue", info.Queue))
		return nil
	case "stats":
		stats, err := ops.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN, "up"); err != nil {
			return err
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stock cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	masterService := masterdata.NewService(masterdata.NewRepository(dbpool), logger)

	stockCache := ledger.NewStockCache(redisClient, cfg.StockCacheTTL)
	stockService := ledger.NewService(ledger.NewRepository(dbpool), stockCache, logger).WithRecorder(recorder)

	documentService := documents.NewService(documents.NewRepository(dbpool), documents.Options{
		Idempotency: idempotencyStore,
		Stock:       stockService,
		Metrics:     metrics.Stock,
		Recorder:    recorder,
	}, logger)

	countService := counts.NewService(counts.NewRepository(dbpool), counts.Options{
		Stock:    stockService,
		Metrics:  metrics.Stock,
		Recorder: recorder,
	}, logger)

	auditService := audit.NewService(audit.NewStore(dbpool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	readiness := map[string]app.Pinger{"postgres": dbpool}
	if redisClient != nil {
		readiness["redis"] = cache.Pinger{Client: redisClient}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MasterDataHandler: masterdata.NewHandler(logger, masterService),
		StockHandler:      ledger.NewHandler(logger, stockService),
		DocumentsHandler:  documents.NewHandler(logger, documentService),
		CountsHandler:     counts.NewHandler(logger, countService),
		AuditHandler:      audithttp.NewHandler(logger, auditService),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
		Readiness:         readiness,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
