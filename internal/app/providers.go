package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/provider"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/internal/scheduler"
	"github.com/ndtrung-ct/signal-reactor/internal/transport"
)

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	opts := options.Client().
		SetAppName("signal-reactor").
		ApplyURI(cfg.Database.URI).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	if cfg.Database.Username != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	mongoDB := mongoClient.Database(cfg.Database.Database)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
		OnStop: func(ctx context.Context) error {
			return mongoClient.Disconnect(ctx)
		},
	})

	return &mongodb.DB{
		Client:   mongoClient,
		Database: mongoDB,
	}, nil
}

func newTransportAdapter(cfg *config.Config) (transport.Adapter, error) {
	return transport.NewAdapter(cfg.Transport)
}

// newProviderRouter registers enabled providers local-first, so the remote
// API is only consulted when Ollama cannot serve.
func newProviderRouter(cfg *config.Config) (provider.Router, error) {
	ctx := context.Background()

	var providers []provider.Provider
	if cfg.Providers.Ollama.Enabled {
		providers = append(providers, provider.NewOllama(cfg.Providers.Ollama, cfg.Providers))
	}
	if cfg.Providers.Gemini.Enabled && cfg.Providers.Gemini.APIKey != "" {
		gemini, err := provider.NewGemini(ctx, cfg.Providers.Gemini)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}

	if len(providers) == 0 {
		log.Warnw(ctx, "no AI providers configured, ai mode and analysis jobs will fail")
	}

	return provider.NewRouter(cfg.Providers, providers...)
}

func newAnalyzer(messageRepo mongodb.MessageRepository, router provider.Router, cfg *config.Config) scheduler.Analyzer {
	return scheduler.NewAnalyzer(messageRepo, router, cfg.Scheduler.MinMessages)
}
