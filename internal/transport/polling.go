package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// pollingAdapter drains the daemon with a receive call on a fixed interval.
// Slower than the persistent daemon mode but tolerant of a signal-cli that
// rejects long-lived subscribers.
type pollingAdapter struct {
	sender
	cfg     config.TransportConfig
	metrics *prometheus.HistogramVec
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPollingAdapter(cfg config.TransportConfig) (Adapter, error) {
	metrics, err := util.GetHistogramVec("transport_events_consumed", "status", "kind")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	return &pollingAdapter{
		sender: sender{
			client:  signal.NewClient(cfg.Addr, cfg.CallTimeout),
			account: cfg.Account,
			retries: cfg.SendRetries,
			backoff: cfg.SendRetryBackoff,
		},
		cfg:     cfg,
		metrics: metrics,
	}, nil
}

func (a *pollingAdapter) Start(ctx context.Context, handler EventHandler) error {
	if err := a.client.Connect(ctx); err != nil {
		return err
	}
	log.Infow(ctx, "polling signal-cli for events",
		"addr", a.cfg.Addr,
		"interval", a.cfg.PollInterval,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go a.run(runCtx, handler)
	return nil
}

func (a *pollingAdapter) run(ctx context.Context, handler EventHandler) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		a.poll(ctx, handler)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *pollingAdapter) poll(ctx context.Context, handler EventHandler) {
	entries, err := signal.Receive(ctx, a.client, a.cfg.Account, a.cfg.ReceiveTimeout.Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warnw(ctx, "receive poll failed", "error", err)
		// Redial only when the connection itself is gone; an RPC error or a
		// slow call on a live connection is retried on the next tick.
		select {
		case <-a.client.Done():
			if reconnErr := a.client.Connect(ctx); reconnErr != nil {
				log.Warnw(ctx, "signal-cli reconnect failed", "error", reconnErr)
			}
		default:
		}
		return
	}

	for _, entry := range entries {
		if entry.Envelope == nil {
			continue
		}
		event := ClassifyEnvelope(entry.Envelope)
		start := time.Now()
		status := "success"
		if err := handler(ctx, event); err != nil {
			status = "failure"
			log.Errorw(ctx, "event handler failed",
				"event_id", event.StableID(),
				"kind", event.Kind,
				"error", err,
			)
		}
		a.metrics.WithLabelValues(status, string(event.Kind)).Observe(time.Since(start).Seconds())
	}
}

func (a *pollingAdapter) SendReaction(ctx context.Context, groupID, targetAuthor string, targetTimestamp int64, emoji string) error {
	return a.sendReaction(ctx, groupID, targetAuthor, targetTimestamp, emoji)
}

func (a *pollingAdapter) ListGroups(ctx context.Context) ([]signal.ListedGroup, error) {
	return a.listGroups(ctx)
}

func (a *pollingAdapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	err := a.client.Close()
	a.wg.Wait()
	return err
}
