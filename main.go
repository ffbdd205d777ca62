package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/attachments"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/auth"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/config"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/db"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/enrich"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/gelf"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/handler"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/identity"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/idempotency"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/materialize"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/metrics"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/notify"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider/google"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider/memory"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider/oxi"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provision"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/render"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/repository"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/router"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("OXILEADS_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// GELF UDP logging
	var sinks []zapcore.WriteSyncer
	if cfg.Log.GELFAddr != "" {
		w, err := gelf.New(cfg.Log.GELFAddr, cfg.Log.Service)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: GELF init failed: %v\n", err)
		} else {
			defer w.Close()
			sinks = append(sinks, w)
		}
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, sinks...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", zap.Error(err))
		os.Exit(1)
	}
}

// backend is what a provider kind contributes.
type backend struct {
	workspace provider.Workspace
	table     provider.Table
	checks    map[string]handler.Check
	closers   []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	m := metrics.New()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	guard := provider.NewGuard(provider.Limits{
		RatePerSecond: cfg.Provider.RatePerSecond,
		Burst:         cfg.Provider.Burst,
		CallTimeout:   cfg.Provider.CallTimeout,
	}, m)
	ws := guard.Workspace(be.workspace)

	leads, err := openLeadStore(ctx, cfg, guard.Table(be.table), be, log)
	if err != nil {
		return err
	}
	if err := leads.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("prepare lead store: %w", err)
	}

	dedupe := idempotency.Store(idempotency.NewMemoryStore())
	if cfg.Redis.URL != "" {
		rdb, err := idempotency.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		be.closers = append(be.closers, func() { _ = rdb.Close() })
		be.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		dedupe = idempotency.NewRedisStore(rdb, cfg.Redis.Prefix)
		log.Info(ctx, "webhook dedupe: redis")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		be.closers = append(be.closers, nc.Close)
		notifier = notify.NewNATSNotifier(nc, cfg.NATS.SubjectPrefix)
		log.Info(ctx, "lead events: nats", zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	loc, err := time.LoadLocation(cfg.Defaults.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	enricher := enrich.New(
		identity.NewResolver(cfg.Identity.Strict, identity.Defaults{
			FirstName: cfg.Identity.DefaultFirstName,
			LastName:  cfg.Identity.DefaultLastName,
			Email:     cfg.Identity.DefaultEmail,
		}),
		enrich.Defaults{
			FinancingType:    cfg.Defaults.FinancingType,
			FundingTargetMin: cfg.Defaults.FundingTargetMin,
			FundingTargetMax: cfg.Defaults.FundingTargetMax,
		},
		enrich.WithLocation(loc),
	)

	leadSvc := service.NewLeadService(service.LeadDeps{
		Normalizer:   fields.NewNormalizer(nil),
		Enricher:     enricher,
		Provisioner:  provision.New(ws, log),
		Orchestrator: materialize.NewOrchestrator(render.NewRenderer(ws, render.WithBareWords(cfg.Render.ReplaceBareWords)), ws, log, m),
		Attachments:  attachments.New(&http.Client{Timeout: cfg.Provider.CallTimeout}, ws, log),
		Leads:        leads,
		Notifier:     notifier,
		Templates:    cfg.Templates,
		Folders:      service.Folders{PhaseOneRoot: cfg.Folders.PhaseOneRoot, PhaseTwoRoot: cfg.Folders.PhaseTwoRoot},
		Log:          log,
		Metrics:      m,
	})

	hash := cfg.Auth.AdminPasswordHash
	if hash == "" {
		if hash, err = auth.HashPassword(cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
	}
	authSvc := service.NewAuthService(cfg.Auth.AdminEmail, hash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	r := router.New(cfg.Auth.JWTSecret, log,
		handler.NewAuthHandler(authSvc),
		handler.NewWebhookHandler(leadSvc, dedupe, handler.WebhookConfig{
			Token:          cfg.Webhook.Token,
			DedupeTTL:      cfg.Webhook.DedupeTTL,
			ProcessTimeout: cfg.Webhook.ProcessTimeout,
			MaxBytes:       cfg.Server.MaxBodyBytes,
		}, log, m),
		handler.NewLeadHandler(leadSvc, cfg.Server.MaxBodyBytes),
		handler.NewHealthHandler(be.checks),
		m.Handler(),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "OxiLeads server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("provider", cfg.Provider.Kind),
			zap.String("store", cfg.Store.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (*backend, error) {
	be := &backend{checks: map[string]handler.Check{}}
	templates, err := readTemplates(cfg.Provider.TemplateDir, cfg.Templates)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider.Kind {
	case config.ProviderMemory:
		ws := memory.NewWorkspace()
		ws.AddRoot(cfg.Folders.PhaseOneRoot, "Phase One")
		ws.AddRoot(cfg.Folders.PhaseTwoRoot, "Phase Two")
		for id, body := range templates {
			ws.AddTemplate(id, id, string(body))
		}
		be.workspace, be.table = ws, memory.NewTable()
		log.Warn(ctx, "memory provider: documents and leads are lost on restart")

	case config.ProviderGoogle:
		creds := google.Credentials{AccessToken: cfg.Provider.AccessToken}
		if cfg.Provider.CredentialsFile != "" {
			if creds.CredentialsJSON, err = os.ReadFile(cfg.Provider.CredentialsFile); err != nil {
				return nil, fmt.Errorf("read credentials: %w", err)
			}
		}
		opts, err := google.ClientOptions(ctx, creds)
		if err != nil {
			return nil, err
		}
		ws, err := google.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		be.workspace, be.table = ws, ws

	case config.ProviderOxiDB:
		pool, err := db.NewPool(ctx, cfg.Store.OxiDBAddr, cfg.Store.OxiDBPoolSize, log)
		if err != nil {
			return nil, fmt.Errorf("connect oxidb: %w", err)
		}
		be.closers = append(be.closers, pool.Close)
		be.checks["oxidb"] = pool.Ping
		log.Info(ctx, "connected to OxiDB",
			zap.String("addr", cfg.Store.OxiDBAddr),
			zap.Int("pool_size", pool.Size()),
		)
		if err := oxi.EnsureSchema(ctx, pool, cfg.Store.OxiDBBucket); err != nil {
			be.close()
			return nil, fmt.Errorf("oxidb schema: %w", err)
		}
		ws := oxi.NewWorkspace(pool, cfg.Store.OxiDBBucket)
		for id, name := range map[string]string{cfg.Folders.PhaseOneRoot: "Phase One", cfg.Folders.PhaseTwoRoot: "Phase Two"} {
			if err := ws.EnsureRoot(ctx, id, name); err != nil {
				be.close()
				return nil, fmt.Errorf("oxidb root %s: %w", id, err)
			}
		}
		for id, body := range templates {
			if err := ws.ImportTemplate(ctx, id, id, body); err != nil {
				be.close()
				return nil, fmt.Errorf("import template %s: %w", id, err)
			}
		}
		be.workspace, be.table = ws, oxi.NewTable(pool)

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
	return be, nil
}

func openLeadStore(ctx context.Context, cfg *config.Config, table provider.Table, be *backend, log *logging.Logger) (repository.LeadStore, error) {
	if cfg.Store.Kind != config.StorePostgres {
		return repository.NewSheetLeadRepo(table, cfg.Store.SheetID, cfg.Store.SheetName, log), nil
	}
	gdb, err := repository.OpenPostgres(cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	be.closers = append(be.closers, func() { _ = sqlDB.Close() })
	be.checks["postgres"] = sqlDB.PingContext
	log.Info(ctx, "lead store: postgres")
	return repository.NewPostgresLeadRepo(gdb, log), nil
}

// readTemplates loads <id>.txt for every configured template id. Backends
// that host their own templates leave dir empty.
func readTemplates(dir string, t materialize.Templates) (map[string][]byte, error) {
	if dir == "" {
		return nil, nil
	}
	out := map[string][]byte{}
	for _, id := range []string{
		t.NDA, t.PowerOfAttorney, t.ProjectOverview, t.IdentificationForm,
		t.TermSheetPreDevelopment, t.TermSheetBridge, t.TermSheetConstruction,
		t.FormC, t.EscrowAgreement, t.FinancialStatements, t.ContentBrief,
	} {
		if id == "" || out[id] != nil {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, id+".txt"))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", id, err)
		}
		out[id] = body
	}
	return out, nil
}
