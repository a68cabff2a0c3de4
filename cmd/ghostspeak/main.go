package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	gshttp "github.com/Dexploarer/ghostspeak-go/internal/adapter/http"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/mcp"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/memstore"
	gsnats "github.com/Dexploarer/ghostspeak-go/internal/adapter/nats"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/natskv"
	gsotel "github.com/Dexploarer/ghostspeak-go/internal/adapter/otel"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/postgres"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ristretto"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/tiered"
	"github.com/Dexploarer/ghostspeak-go/internal/adapter/ws"
	"github.com/Dexploarer/ghostspeak-go/internal/config"
	"github.com/Dexploarer/ghostspeak-go/internal/guard"
	"github.com/Dexploarer/ghostspeak-go/internal/logger"
	"github.com/Dexploarer/ghostspeak-go/internal/middleware"
	"github.com/Dexploarer/ghostspeak-go/internal/port/cache"
	"github.com/Dexploarer/ghostspeak-go/internal/port/database"
	"github.com/Dexploarer/ghostspeak-go/internal/port/eventstore"
	"github.com/Dexploarer/ghostspeak-go/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "admin":
			if err := runAdmin(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "migrate":
			if err := runMigrate(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	dev := flag.Bool("dev", false, "run with in-memory storage and no broker")
	flag.Parse()

	if err := run(*dev); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(dev bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"dev", dev,
	)

	ctx := context.Background()

	// --- Observability ---

	otelShutdown, err := gsotel.Setup(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := gsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage and broker ---

	var (
		store  database.Store
		events eventstore.Store
		queue  *gsnats.Queue
	)
	if dev {
		mem := memstore.New()
		store, events = mem, mem
		slog.Warn("dev mode: state is in-memory and will not survive restart")
	} else {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")

		store = postgres.NewStore(pool)
		events = postgres.NewEventStore(pool)

		queue, err = gsnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
	}

	local, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer local.Close()

	// With a broker the reputation cache gains a shared L2 tier, so a score
	// computed on one replica serves reads on all of them.
	var repCache cache.Cache = local
	if queue != nil {
		kv, err := queue.KeyValue(ctx, "reputation", cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("cache kv: %w", err)
		}
		repCache = tiered.New(local, natskv.New(kv), cfg.Cache.TTL)
	}

	// --- Guards ---

	limiter := guard.NewLimiter(cfg.Rate.Limit, cfg.Rate.Window)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval)
	defer stopCleanup()

	guards := service.NewGuards(limiter)
	guards.SetMetrics(metrics)

	// --- Services ---

	hub := ws.NewHub()

	registrySvc := service.NewRegistryService(store, guards, &cfg.Reputation)
	registrySvc.SetEventStore(events)
	registrySvc.SetHub(hub)

	stakingSvc := service.NewStakingService(store, guards)
	stakingSvc.SetEventStore(events)
	if err := stakingSvc.EnsureConfig(ctx, cfg.Staking); err != nil {
		return fmt.Errorf("staking config: %w", err)
	}

	reputationSvc := service.NewReputationService(store, guards, stakingSvc, &cfg.Reputation)
	reputationSvc.SetEventStore(events)
	reputationSvc.SetHub(hub)
	reputationSvc.SetCache(repCache, cfg.Cache.TTL)
	reputationSvc.SetMetrics(metrics)

	escrowSvc := service.NewEscrowService(store, guards, reputationSvc)
	escrowSvc.SetEventStore(events)
	escrowSvc.SetHub(hub)
	escrowSvc.SetMetrics(metrics)

	adminSvc := service.NewAdminService(store, guards)
	adminSvc.SetEventStore(events)
	if err := adminSvc.RestoreBreaker(ctx); err != nil {
		return fmt.Errorf("restore breaker: %w", err)
	}

	if queue != nil {
		reputationSvc.SetQueue(queue)
		escrowSvc.SetQueue(queue)

		cancelPayments, err := reputationSvc.StartPaymentSubscriber(ctx)
		if err != nil {
			return fmt.Errorf("payment subscriber: %w", err)
		}
		defer cancelPayments()
	}

	// --- MCP ---

	if cfg.MCP.Addr != "" {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.Logging.Service,
			Version: "0.1.0",
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{
			Agents:     registrySvc,
			Escrows:    escrowSvc,
			Reputation: reputationSvc,
			Staking:    stakingSvc,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
	}

	// --- HTTP ---

	handlers := &gshttp.Handlers{
		Registry:   registrySvc,
		Staking:    stakingSvc,
		Escrow:     escrowSvc,
		Reputation: reputationSvc,
		Admin:      adminSvc,
		Hub:        hub,
	}
	if queue != nil {
		handlers.Queue = queue
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Caller)
	r.Use(gshttp.SecurityHeaders)
	r.Use(gshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(gshttp.Logger)
	r.Use(gsotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	gshttp.MountRoutes(r, handlers, cfg.Auth)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		hub.Close()
		if queue != nil {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain failed", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
