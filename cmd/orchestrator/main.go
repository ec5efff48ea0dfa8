package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/forgewright/orchestrator/internal/adapter/chatdispatcher"
	"github.com/forgewright/orchestrator/internal/adapter/clidispatcher"
	"github.com/forgewright/orchestrator/internal/adapter/discord"
	"github.com/forgewright/orchestrator/internal/adapter/httpapi"
	"github.com/forgewright/orchestrator/internal/adapter/httpboard"
	"github.com/forgewright/orchestrator/internal/adapter/mcp"
	"github.com/forgewright/orchestrator/internal/adapter/natsbus"
	"github.com/forgewright/orchestrator/internal/adapter/otel"
	"github.com/forgewright/orchestrator/internal/adapter/postgres"
	"github.com/forgewright/orchestrator/internal/adapter/ristretto"
	"github.com/forgewright/orchestrator/internal/adapter/slacknotify"
	"github.com/forgewright/orchestrator/internal/adapter/ws"
	"github.com/forgewright/orchestrator/internal/config"
	"github.com/forgewright/orchestrator/internal/domain/policy"
	"github.com/forgewright/orchestrator/internal/git"
	"github.com/forgewright/orchestrator/internal/logger"
	"github.com/forgewright/orchestrator/internal/port/dispatcher"
	"github.com/forgewright/orchestrator/internal/port/notifier"
	"github.com/forgewright/orchestrator/internal/resilience"
	"github.com/forgewright/orchestrator/internal/service"
)

// staleAgentThreshold is how long an active agent can go without a
// TouchAgentLastSeen heartbeat before the deep health endpoint flags it.
const staleAgentThreshold = 10 * time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store_max_conns", cfg.Store.MaxConns,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	slog.Info("store connected")

	if err := postgres.RunMigrations(ctx, cfg.Store.URL); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	bus, err := natsbus.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	shutdownTracer, err := otel.InitTracer(otel.OTELConfig{
		Enabled:     cfg.OTEL.Enabled,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Insecure:    cfg.OTEL.Insecure,
		SampleRate:  cfg.OTEL.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	cache, err := ristretto.New(cfg.Cache.L1MaxCost)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	// --- Dispatchers (step execution backends) ---

	clidispatcher.Register(bus.Conn())
	activeBackend := "cli"
	if cfg.Dispatcher.BaseURL != "" {
		chatdispatcher.RegisterStep(cfg.Dispatcher.BaseURL, cfg.Dispatcher.APIKey, cfg.Dispatcher.Model)
		chatdispatcher.RegisterChat(cfg.Dispatcher.BaseURL, cfg.Dispatcher.APIKey, cfg.Dispatcher.Model)
		activeBackend = "chat"
	}
	activeStepDispatcher, err := dispatcher.NewStepDispatcher(activeBackend, nil)
	if err != nil {
		return fmt.Errorf("activate step dispatcher %q: %w", activeBackend, err)
	}
	dispatcher.SetActiveStepDispatcher(activeBackend, activeStepDispatcher)
	slog.Info("step dispatcher active", "backend", activeBackend)

	// --- Board adapters ---

	boardClient := httpboard.New(cfg.Board.BaseURL, cfg.Board.Token, cfg.Board.OrgID)
	boardClient.SetBreaker(breaker)

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigin, nil)
	store := postgres.NewStore(pool)
	events := postgres.NewEventStore(pool)

	hooks := service.NewHookBus()
	if err := loadPlugins(cfg.Dirs.Plugins, hooks); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	approval := service.NewApprovalEngine(store)
	trigger := service.NewTriggerEvaluator(store, events)
	worker := service.NewWorkerEngine(store, events, cache, time.Duration(cfg.Scheduler.StepTimeoutSeconds)*time.Second)
	worker.SetMetrics(metrics)
	worker.SetGitPool(git.NewPool(cfg.Git.MaxConcurrentOps))

	customPolicies, err := policy.LoadFromDirectory(cfg.Policy.ProfilesDir)
	if err != nil {
		return fmt.Errorf("load policy profiles: %w", err)
	}
	worker.SetPolicy(service.NewPolicyService(cfg.Policy.DefaultProfile, customPolicies))

	orchestrator := service.NewOrchestratorService(store, events, hub, approval, trigger, worker, hooks, cfg.Orchestrator)
	orchestrator.SetMetrics(metrics)

	for boardID, slug := range cfg.Board.Map {
		orchestrator.RegisterBoard(boardID, slug, boardClient)
	}

	// --- Stream ingestion: one SSE consumer pair per configured board ---

	wakeupRequester := func(boardID string) {
		if err := bus.PublishWakeup(ctx, boardID); err != nil {
			slog.Warn("publish wakeup failed", "board_id", boardID, "error", err)
		}
	}
	streamCtx, streamCancel := context.WithCancel(ctx)
	var ingestors []*service.StreamIngestor
	for boardID := range cfg.Board.Map {
		ingestor := service.NewStreamIngestor(boardClient, boardID, wakeupRequester)
		ingestors = append(ingestors, ingestor)
		go func(boardID string) {
			if err := ingestor.Run(streamCtx); err != nil {
				slog.Warn("stream ingestor stopped", "board_id", boardID, "error", err)
			}
		}(boardID)
	}

	if n := buildNotifier(cfg.Notification); n != nil {
		orchestrator.SetNotifier(n)
	}

	// --- MCP introspection server ---

	mcpServer := mcp.NewServer(mcp.ServerConfig{
		Addr:    cfg.MCP.Addr,
		Name:    "orchestrator",
		Version: "1.0.0",
	}, mcp.ServerDeps{
		ProposalLister: store,
		MissionReader:  store,
		TriggerLister:  store,
	})
	if err := mcpServer.Start(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	// --- Wakeup subscription: an external wakeup triggers an out-of-cycle tick ---

	cancelWakeups, err := bus.SubscribeWakeups(ctx, func(boardID string) {
		slog.Info("wakeup received, running out-of-cycle tick", "board_id", boardID)
		orchestrator.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("subscribe wakeups: %w", err)
	}

	// --- Scheduler loops ---

	schedCtx, schedCancel := context.WithCancel(ctx)
	runScheduler(schedCtx, orchestrator, store, cfg.Scheduler)

	// --- HTTP ---

	handlers := &httpapi.Handlers{
		Orchestrator: orchestrator,
		Checks: []httpapi.Checker{
			{Name: "store", Func: func(ctx context.Context) error { return pool.Ping(ctx) }},
			{Name: "board", Func: func(ctx context.Context) error {
				_, err := boardClient.ListBoards(ctx)
				return err
			}},
			{Name: "stuck_missions", Func: func(ctx context.Context) error {
				n, err := orchestrator.StuckMissionCount(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					return fmt.Errorf("%d stuck mission(s)", n)
				}
				return nil
			}},
			{Name: "stale_agents", Func: func(ctx context.Context) error {
				stale, err := orchestrator.StaleAgentNames(ctx, staleAgentThreshold)
				if err != nil {
					return err
				}
				if len(stale) > 0 {
					return fmt.Errorf("stale agents: %s", strings.Join(stale, ", "))
				}
				return nil
			}},
			{Name: "streams", Func: func(ctx context.Context) error {
				want := len(cfg.Board.Map) * 2
				if want == 0 {
					return nil
				}
				active := 0
				for _, ing := range ingestors {
					active += ing.ActiveStreamCount()
				}
				if active < want {
					return fmt.Errorf("%d/%d board streams connected", active, want)
				}
				return nil
			}},
		},
	}

	r := httpapi.MountRoutes(handlers, cfg.Server.CORSOrigin)
	mux := http.NewServeMux()
	mux.Handle("/", r)
	mux.HandleFunc("/ws", hub.HandleWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done

	// --- Ordered graceful shutdown ---

	slog.Info("shutdown phase 1: stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		slog.Error("mcp shutdown error", "error", err)
	}

	slog.Info("shutdown phase 2: stopping scheduler, stream ingestors, and wakeup subscriber")
	schedCancel()
	streamCancel()
	cancelWakeups()

	slog.Info("shutdown phase 3: draining nats connection")
	if err := bus.Drain(); err != nil {
		slog.Error("nats drain error", "error", err)
	}

	slog.Info("shutdown phase 4: shutting down tracer")
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Error("otel shutdown error", "error", err)
	}

	slog.Info("shutdown phase 5: closing store pool")
	pool.Close()

	slog.Info("shutdown complete")
	return nil
}

// loadPlugins discovers plugin manifests under dir and registers a
// handler for each hook a plugin declares, in dependency order. Plugin
// code itself is not dynamically loaded: every declared hook name gets
// the same stand-in handler, which only logs that the hook fired.
func loadPlugins(dir string, hooks *service.HookBus) error {
	mgr := service.NewPluginManager(dir)
	if err := mgr.Discover(); err != nil {
		return err
	}
	manifests := mgr.Manifests()
	for _, name := range mgr.DiscoveryOrder() {
		manifest := manifests[name]
		slog.Info("plugin discovered", "name", manifest.Name, "version", manifest.Version, "hooks", manifest.Hooks)
		for _, hookName := range manifest.Hooks {
			pluginName := manifest.Name
			hooks.On(hookName, func(ctx context.Context, hookCtx map[string]any) (any, error) {
				slog.Debug("plugin hook fired", "plugin", pluginName, "hook", hookName)
				return nil, nil
			})
		}
	}
	return nil
}

// buildNotifier combines every configured escalation channel into a
// single fan-out notifier.Notifier, or nil if none are configured.
func buildNotifier(cfg config.Notification) notifier.Notifier {
	var notifiers []notifier.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, slacknotify.NewNotifier(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, discord.NewNotifier(cfg.DiscordWebhookURL))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return service.NewNotificationService(notifiers, nil)
}

// runScheduler launches the tick loop and a single work-cycle loop that
// walks every active project's agents, each loop on its own configured
// interval.
func runScheduler(ctx context.Context, orch *service.OrchestratorService, store *postgres.Store, cfg config.Scheduler) {
	tickInterval := time.Duration(cfg.OrchestratorTickIntervalSeconds) * time.Second
	workInterval := time.Duration(cfg.AgentWorkIntervalSeconds) * time.Second

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := orch.Tick(ctx)
				if len(result.Errors) > 0 {
					slog.Warn("tick completed with errors", "errors", result.Errors)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(workInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runWorkCycles(ctx, orch, store)
			}
		}
	}()
}

// runWorkCycles drives one work cycle per active agent across every
// active project.
func runWorkCycles(ctx context.Context, orch *service.OrchestratorService, store *postgres.Store) {
	projects, err := store.ListActiveProjects(ctx)
	if err != nil {
		slog.Warn("list active projects for work cycle failed", "error", err)
		return
	}
	for _, p := range projects {
		agents, err := store.ListAgents(ctx, p.ID)
		if err != nil {
			slog.Warn("list agents for work cycle failed", "project_id", p.ID, "error", err)
			continue
		}
		for _, a := range agents {
			if !a.IsActive() {
				continue
			}
			result := orch.WorkCycle(ctx, a.ID)
			if len(result.Errors) > 0 {
				slog.Warn("work cycle completed with errors", "agent_id", a.ID, "errors", result.Errors)
			}
		}
	}
}
