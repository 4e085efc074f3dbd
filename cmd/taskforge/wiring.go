package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/taskforge/platform/pkg/artifacts"
	"github.com/taskforge/platform/pkg/broker"
	"github.com/taskforge/platform/pkg/cache"
	"github.com/taskforge/platform/pkg/cleanup"
	"github.com/taskforge/platform/pkg/config"
	"github.com/taskforge/platform/pkg/dispatcher"
	"github.com/taskforge/platform/pkg/llmsdk"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/providers"
	"github.com/taskforge/platform/pkg/runner"
	"github.com/taskforge/platform/pkg/slack"
	"github.com/taskforge/platform/pkg/store"
)

// app holds every long-lived component the serve and worker subcommands
// share, wired once from a loaded Config. Closers run in reverse wiring
// order on shutdown, the same "defer close in the order built" idiom the
// teacher's cmd/tarsy/main.go uses for its database client.
type app struct {
	cfg        *config.Config
	store      store.Store
	cacheCli   *cache.ClientCache
	sessions   cache.SessionCache
	br         broker.Broker
	artifacts  artifacts.Store
	sdk        llmsdk.SDK
	providers  *providers.Registry
	dispatcher *dispatcher.Dispatcher
	runner     *runner.Runner
	cleanup    *cleanup.Service
	notifier   *slack.Service

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("shutdown: component close failed", "error", err)
		}
	}
}

// buildApp wires every component from cfg. Storage backends fall back to
// in-memory implementations when their *_URI setting is empty, so `serve`
// and `worker` run standalone for local development without Postgres/NATS/S3,
// mirroring the teacher's habit of keeping every service constructible
// without its full production dependency set.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	s, closeStore, err := buildStore(ctx, cfg.Storage.StoreURI)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}
	a.store = s
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	sessions, closeSessions, err := buildSessionCache(cfg.Storage.CacheURI)
	if err != nil {
		return nil, fmt.Errorf("build session cache: %w", err)
	}
	a.sessions = sessions
	if closeSessions != nil {
		a.closers = append(a.closers, closeSessions)
	}

	clients, err := cache.NewClientCache(cache.DefaultClientCacheSize, cache.DefaultClientTTL)
	if err != nil {
		return nil, fmt.Errorf("build client cache: %w", err)
	}
	a.cacheCli = clients

	br, err := buildBroker(ctx, cfg.Storage.BrokerURI)
	if err != nil {
		return nil, fmt.Errorf("build broker: %w", err)
	}
	a.br = br
	a.closers = append(a.closers, br.Close)

	artifactStore, err := buildArtifacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("build artifact store: %w", err)
	}
	a.artifacts = artifactStore

	sdk, err := llmsdk.NewAnthropic(llmsdk.AnthropicConfig{
		APIKey:       cfg.LLM.AnthropicAPIKey,
		DefaultModel: cfg.LLM.DefaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm sdk: %w", err)
	}
	a.sdk = sdk

	// No concrete provider-catalog adapters are in scope (spec.md §1
	// Non-goals: "per-provider catalog-tool adapter internals"); the
	// registry is wired with an empty constructor set so Training jobs
	// resolve data sources through DataSource documents directly while
	// any future provider_type simply fails lookup with apperr.NotFound.
	a.providers = providers.New(a.store, a.cacheCli, map[string]providers.Constructor{}, dataSourceCredentialFetcher)

	a.dispatcher = dispatcher.New(a.store, a.br)

	a.notifier = slack.NewService(slack.ServiceConfig{
		Token:        envOr("SLACK_BOT_TOKEN", ""),
		Channel:      envOr("SLACK_CHANNEL", ""),
		DashboardURL: envOr("DASHBOARD_URL", ""),
	})

	a.runner = runner.New(a.store, a.sdk, a.sessions, a.artifacts, a.providers, a.notifier, runner.Config{
		Model:        cfg.LLM.DefaultModel,
		MaxTurns:     cfg.LLM.DefaultMaxTurns,
		WorkspaceDir: cfg.Workspace.BasePath,
	})

	a.cleanup = cleanup.NewService(a.store, a.artifacts, cfg.Cleanup.Schedule)

	return a, nil
}

func buildStore(ctx context.Context, uri string) (store.Store, func() error, error) {
	if uri == "" {
		slog.Warn("STORE_URI not set, using in-memory store")
		return store.NewMemory(), nil, nil
	}
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	closer := func() error {
		pool.Close()
		return nil
	}
	return store.NewPostgres(pool), closer, nil
}

func buildSessionCache(uri string) (cache.SessionCache, func() error, error) {
	if uri == "" {
		slog.Warn("CACHE_URI not set, using in-memory session cache")
		return cache.NewMemorySessionCache(30 * time.Minute), nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: strings.TrimPrefix(uri, "redis://")})
	return cache.NewRedisSessionCache(rdb, 30*time.Minute), rdb.Close, nil
}

func buildBroker(ctx context.Context, url string) (broker.Broker, error) {
	if url == "" {
		slog.Warn("BROKER_URI not set, using in-memory broker")
		return broker.NewMemoryBroker(), nil
	}
	return broker.NewNATS(ctx, url, broker.NATSOptions{})
}

func buildArtifacts(ctx context.Context) (artifacts.Store, error) {
	bucket := envOr("ARTIFACTS_S3_BUCKET", "")
	if bucket == "" {
		slog.Warn("ARTIFACTS_S3_BUCKET not set, using in-memory artifact store")
		return artifacts.NewMemory(), nil
	}
	return artifacts.NewS3Store(ctx, artifacts.S3Config{
		Bucket:          bucket,
		Region:          envOr("ARTIFACTS_S3_REGION", "us-east-1"),
		Endpoint:        envOr("ARTIFACTS_S3_ENDPOINT", ""),
		AccessKeyID:     envOr("ARTIFACTS_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: envOr("ARTIFACTS_S3_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    envOr("ARTIFACTS_S3_ENDPOINT", "") != "",
	})
}

// dataSourceCredentialFetcher resolves a provider client's init config from
// the DataSource document matching (project_id, type), per spec.md §4.13
// step 2's "credentials live on the Project/DataSource documents
// themselves" design.
func dataSourceCredentialFetcher(ctx context.Context, s store.Store, projectID, providerType string) (map[string]any, error) {
	results, err := s.Find(ctx, models.CollectionDataSources, store.Filter{
		"project_id": projectID,
		"type":       providerType,
	}, func() store.Document { return &models.DataSource{} })
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return map[string]any{}, nil
	}
	return results[0].(*models.DataSource).Config, nil
}
