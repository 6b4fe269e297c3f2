package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// daemonAdapter keeps a persistent JSON-RPC connection and consumes receive
// notifications pushed by signal-cli. On connection loss it reconnects with
// exponential backoff; events arriving while disconnected are redelivered by
// the daemon on the next receive.
type daemonAdapter struct {
	sender
	cfg     config.TransportConfig
	metrics *prometheus.HistogramVec
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDaemonAdapter(cfg config.TransportConfig) (Adapter, error) {
	metrics, err := util.GetHistogramVec("transport_events_consumed", "status", "kind")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	return &daemonAdapter{
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

func (a *daemonAdapter) Start(ctx context.Context, handler EventHandler) error {
	if err := a.client.Connect(ctx); err != nil {
		return err
	}
	log.Infow(ctx, "connected to signal-cli daemon", "addr", a.cfg.Addr)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go a.run(runCtx, handler)
	return nil
}

func (a *daemonAdapter) run(ctx context.Context, handler EventHandler) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-a.client.Notifications():
			a.handleNotification(ctx, notif, handler)
		case <-a.client.Done():
			if err := a.reconnect(ctx); err != nil {
				return
			}
		}
	}
}

func (a *daemonAdapter) reconnect(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = a.cfg.ReconnectMax
	policy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		if err := a.client.Connect(ctx); err != nil {
			log.Warnw(ctx, "signal-cli reconnect failed", "addr", a.cfg.Addr, "error", err)
			return err
		}
		log.Infow(ctx, "reconnected to signal-cli daemon", "addr", a.cfg.Addr)
		return nil
	}, backoff.WithContext(policy, ctx))
}

func (a *daemonAdapter) handleNotification(ctx context.Context, notif signal.Notification, handler EventHandler) {
	if notif.Method != "receive" {
		return
	}

	var entry signal.ReceiveEntry
	if err := json.Unmarshal(notif.Params, &entry); err != nil {
		log.Warnw(ctx, "failed to decode receive notification", "error", err)
		return
	}
	if entry.Envelope == nil {
		return
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

func (a *daemonAdapter) SendReaction(ctx context.Context, groupID, targetAuthor string, targetTimestamp int64, emoji string) error {
	return a.sendReaction(ctx, groupID, targetAuthor, targetTimestamp, emoji)
}

func (a *daemonAdapter) ListGroups(ctx context.Context) ([]signal.ListedGroup, error) {
	return a.listGroups(ctx)
}

func (a *daemonAdapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	err := a.client.Close()
	a.wg.Wait()
	return err
}
