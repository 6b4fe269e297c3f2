package provider

import (
	"context"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// Router tries providers in registration order, local first. Transient and
// loading failures are retried on the same provider with class-specific
// backoff; permanent failures skip straight to the next provider. When every
// provider is exhausted the caller gets ErrAllProvidersUnavailable.
type Router interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type router struct {
	providers []Provider
	cfg       config.ProvidersConfig
	metrics   *prometheus.HistogramVec

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRouter(cfg config.ProvidersConfig, providers ...Provider) (Router, error) {
	metrics, err := util.GetHistogramVec("ai_provider_calls", "provider", "status")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	return &router{
		providers: providers,
		cfg:       cfg,
		metrics:   metrics,
		sleep:     sleepCtx,
	}, nil
}

func (r *router) Generate(ctx context.Context, prompt string) (string, error) {
	if len(r.providers) == 0 {
		return "", models.ErrAllProvidersUnavailable
	}

	var lastErr error
	for _, p := range r.providers {
		out, err := r.tryProvider(ctx, p, prompt)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		log.Warnw(ctx, "provider exhausted, falling back",
			"provider", p.Name(),
			"error", err,
		)
	}

	return "", fmt.Errorf("%w: %v", models.ErrAllProvidersUnavailable, lastErr)
}

func (r *router) tryProvider(ctx context.Context, p Provider, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		out, err := p.Generate(ctx, prompt)
		if err == nil {
			r.metrics.WithLabelValues(p.Name(), "success").Observe(time.Since(start).Seconds())
			return out, nil
		}
		r.metrics.WithLabelValues(p.Name(), "failure").Observe(time.Since(start).Seconds())
		lastErr = err

		class := ClassOf(err)
		if class == ClassPermanent {
			return "", err
		}

		log.Warnw(ctx, "provider call failed",
			"provider", p.Name(),
			"attempt", attempt,
			"class", class.String(),
			"error", err,
		)

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.cfg.RetryBackoff
		if class == ClassLoading {
			delay = r.cfg.LoadingBackoff
		}
		if err := r.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
