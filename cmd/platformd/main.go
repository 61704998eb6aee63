// Command platformd wires the execution pipeline, agent engine, registries,
// async job broker, and realtime fan-out into one runnable process. It can
// serve the API-facing HTTP surface, drain the job queue as a worker, or
// both, selected with -mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/agentplatform/core/agents"
	"github.com/agentplatform/core/collaborators"
	"github.com/agentplatform/core/config"
	"github.com/agentplatform/core/connectors"
	"github.com/agentplatform/core/jobs"
	"github.com/agentplatform/core/llmgateway"
	"github.com/agentplatform/core/llmgateway/anthropic"
	"github.com/agentplatform/core/llmgateway/openai"
	"github.com/agentplatform/core/packageio"
	"github.com/agentplatform/core/pipeline"
	"github.com/agentplatform/core/realtime"
	"github.com/agentplatform/core/session"
	sessionmongo "github.com/agentplatform/core/session/mongo"
	"github.com/agentplatform/core/storage"
	storagemem "github.com/agentplatform/core/storage/memory"
	"github.com/agentplatform/core/telemetry"
	"github.com/agentplatform/core/toolregistry"
)

func main() {
	var (
		configPathF = flag.String("config", "", "path to a YAML config file (defaults overlaid by PLATFORM_* env vars)")
		modeF       = flag.String("mode", "both", "what to run: server, worker, or both")
		debugF      = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg, err := config.Load(*configPathF)
	if err != nil {
		log.Fatalf(ctx, err, "failed to load configuration")
	}

	app, err := wire(ctx, cfg)
	if err != nil {
		log.Fatalf(ctx, err, "failed to wire platform")
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	runServer := *modeF == "server" || *modeF == "both"
	runWorker := *modeF == "worker" || *modeF == "both"

	if runServer {
		app.startHTTPServer(ctx, &wg, errc)
		app.startSubscriber(ctx, &wg, errc)
	}
	if runWorker {
		app.startWorkers(ctx, &wg, errc)
	}
	if !runServer && !runWorker {
		log.Fatal(ctx, fmt.Errorf("invalid -mode %q (want server, worker, or both)", *modeF))
	}

	log.Printf(ctx, "platformd running (mode=%s, http=%s)", *modeF, cfg.HTTPAddr)
	log.Printf(ctx, "exiting (%v)", <-errc)

	cancel()
	wg.Wait()
	log.Printf(ctx, "exited")
}

// platform bundles every wired component main needs to start the server
// and/or worker loops.
type platform struct {
	cfg *config.Config

	engine     *agents.Engine
	worker     *jobs.Worker
	jobStore   jobs.Store
	registry   *agents.Registry
	platformFS *storage.Platform
	exporter   *packageio.Exporter
	importer   *packageio.Importer
	subscriber *realtime.Subscriber
	manager    *realtime.Manager
	httpAddr   string
}

// wire constructs every collaborator, registry, and runtime component from
// cfg, seeds the in-process demo agent, and returns the assembled platform.
// Collaborators follow spec §6: a SQLite-backed catalog/consumption tier
// and an in-memory quota counter (no external service required),
// Redis-backed broker/cache/bus, and
// an in-memory object store standing in for a production MinIO/S3 adapter.
func wire(ctx context.Context, cfg *config.Config) (*platform, error) {
	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	db, err := collaborators.OpenSQLite(sqliteDSN(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("platformd: open catalog database: %w", err)
	}
	catalog := collaborators.NewSQLiteCatalog(db)
	secrets := collaborators.NewMemorySecretStore()
	prices := collaborators.NewMemoryPriceTable()
	resolver := collaborators.GatewayResolver{AgentConfig: catalog, Catalog: catalog, Secrets: secrets}
	consumption := collaborators.NewSQLiteConsumption(db,
		collaborators.WithProviderModelResolver(resolver),
		collaborators.WithPriceTable(prices),
	)
	quota := collaborators.NewCounterQuota(0)
	moderation := collaborators.NewKeywordModeration()

	pipe := pipeline.New(
		pipeline.WithQuota(quota),
		pipeline.WithModeration(moderation),
		pipeline.WithConsumption(consumption),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.BrokerURL})
	broker := jobs.NewRedisBroker(rdb)
	jobStore := jobs.NewRedisStore(rdb)

	bus := realtime.NewRedisBus(rdb)
	manager := realtime.NewManager()
	subscriber := realtime.NewSubscriber(bus, manager)
	publisher := realtime.NewBusPublisher(bus)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.SessionStoreURL))
	if err != nil {
		return nil, fmt.Errorf("platformd: connect session store: %w", err)
	}
	sessionDB := mongoClient.Database("platform")
	durable := sessionmongo.New(sessionDB.Collection("sessions"), sessionDB.Collection("messages"))
	sessions := session.NewCached(durable, rdb)

	objectStore := storagemem.New()

	tools := toolregistry.New(toolregistry.WithLogger(logger), toolregistry.WithMetrics(metrics))
	conns := connectors.New(connectors.WithLogger(logger), connectors.WithMetrics(metrics))
	registry := agents.New(agents.WithLogger(logger), agents.WithMetrics(metrics))
	seedDemoAgent(registry)

	providers := map[string]llmgateway.Provider{}
	if key, ok, _ := secrets.Get(ctx, "anthropic"); ok && key != "" {
		providers["anthropic"] = anthropic.NewFromAPIKey(key, "claude-sonnet-4-5")
	}
	if key, ok, _ := secrets.Get(ctx, "openai"); ok && key != "" {
		providers["openai"] = openai.NewFromAPIKey(key, "gpt-4o")
	}

	engine := agents.NewEngine(
		registry, pipe, providers, catalog, catalog, secrets,
		tools, conns, sessions, objectStore, cfg.StorageBucket,
		agents.WithEngineLogger(logger), agents.WithEngineMetrics(metrics),
	)

	worker := jobs.NewWorker(broker, jobStore, engine, publisher,
		jobs.WithWorkerLogger(logger), jobs.WithWorkerMetrics(metrics))

	platformFS := storage.NewPlatform(objectStore, cfg.AgentsBucket)
	validator := packageio.NewValidator(toolSlugSet(tools), connectorSlugSet(conns))
	exporter := packageio.NewExporter(platformFS, validator)
	importer := packageio.NewImporter(platformFS, validator)

	return &platform{
		cfg:        cfg,
		engine:     engine,
		worker:     worker,
		jobStore:   jobStore,
		registry:   registry,
		platformFS: platformFS,
		exporter:   exporter,
		importer:   importer,
		subscriber: subscriber,
		manager:    manager,
		httpAddr:   cfg.HTTPAddr,
	}, nil
}

func toolSlugSet(reg *toolregistry.Registry) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range reg.List() {
		out[t.Slug] = struct{}{}
	}
	return out
}

func connectorSlugSet(reg *connectors.Registry) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range reg.List() {
		out[c.Slug] = struct{}{}
	}
	return out
}

func sqliteDSN(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "sqlite:///")
}
