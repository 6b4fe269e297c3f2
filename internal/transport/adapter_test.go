package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

type stubClient struct {
	calls    []string
	params   []any
	errs     []error
	results  []json.RawMessage
	connects int
	done     chan struct{}
}

func (s *stubClient) Connect(ctx context.Context) error {
	s.connects++
	return nil
}
func (s *stubClient) Close() error { return nil }
func (s *stubClient) Notifications() <-chan signal.Notification {
	return nil
}
func (s *stubClient) Done() <-chan struct{} { return s.done }

func (s *stubClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, method)
	s.params = append(s.params, params)

	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return nil, err
	}
	if idx < len(s.results) {
		return s.results[idx], nil
	}
	return json.RawMessage(`{}`), nil
}

func newTestSender(client signal.Client) *sender {
	return &sender{
		client:  client,
		account: "+15550001111",
		retries: 3,
		backoff: time.Millisecond,
	}
}

func TestSenderSendReaction(t *testing.T) {
	t.Parallel()

	t.Run("succeeds first try", func(t *testing.T) {
		stub := &stubClient{}
		s := newTestSender(stub)

		err := s.sendReaction(context.Background(), "group-a", "alice", 1000, "👍")
		require.NoError(t, err)
		require.Len(t, stub.calls, 1)
		assert.Equal(t, "sendReaction", stub.calls[0])

		params, ok := stub.params[0].(signal.SendReactionParams)
		require.True(t, ok)
		assert.Equal(t, "+15550001111", params.Account)
		assert.Equal(t, "group-a", params.GroupID)
		assert.Equal(t, "alice", params.TargetAuthor)
		assert.Equal(t, int64(1000), params.TargetTimestamp)
		assert.Equal(t, "👍", params.Emoji)
	})

	t.Run("retries until success", func(t *testing.T) {
		stub := &stubClient{errs: []error{
			fmt.Errorf("write: broken pipe"),
			fmt.Errorf("timeout"),
			nil,
		}}
		s := newTestSender(stub)

		err := s.sendReaction(context.Background(), "group-a", "alice", 1000, "👍")
		require.NoError(t, err)
		assert.Len(t, stub.calls, 3)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		stub := &stubClient{errs: []error{
			fmt.Errorf("down"),
			fmt.Errorf("down"),
			fmt.Errorf("down"),
			fmt.Errorf("down"),
		}}
		s := newTestSender(stub)

		err := s.sendReaction(context.Background(), "group-a", "alice", 1000, "👍")
		require.Error(t, err)
		assert.Len(t, stub.calls, 3)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		stub := &stubClient{errs: []error{fmt.Errorf("down"), fmt.Errorf("down")}}
		s := newTestSender(stub)
		s.backoff = time.Second

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := s.sendReaction(ctx, "group-a", "alice", 1000, "👍")
		require.ErrorIs(t, err, context.Canceled)
		assert.Len(t, stub.calls, 1)
	})
}

func TestPollingReconnectGate(t *testing.T) {
	t.Parallel()

	newPolling := func(t *testing.T, stub *stubClient) *pollingAdapter {
		a, err := NewPollingAdapter(config.TransportConfig{
			Addr:           "127.0.0.1:7583",
			Account:        "+15550001111",
			PollInterval:   time.Minute,
			ReceiveTimeout: time.Second,
		})
		require.NoError(t, err)

		p := a.(*pollingAdapter)
		p.client = stub
		return p
	}

	noop := func(ctx context.Context, event models.Event) error { return nil }

	t.Run("rpc error on a live connection does not redial", func(t *testing.T) {
		stub := &stubClient{errs: []error{fmt.Errorf("call receive timed out")}}
		a := newPolling(t, stub)

		a.poll(context.Background(), noop)

		assert.Zero(t, stub.connects)
	})

	t.Run("redials once the connection is down", func(t *testing.T) {
		down := make(chan struct{})
		close(down)
		stub := &stubClient{errs: []error{fmt.Errorf("connection closed")}, done: down}
		a := newPolling(t, stub)

		a.poll(context.Background(), noop)

		assert.Equal(t, 1, stub.connects)
	})
}

func TestNewAdapter(t *testing.T) {
	t.Parallel()

	cfg := config.TransportConfig{Addr: "127.0.0.1:7583", Account: "+1555"}

	cfg.Mode = ModeDaemon
	adapter, err := NewAdapter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &daemonAdapter{}, adapter)

	cfg.Mode = ModePolling
	adapter, err = NewAdapter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &pollingAdapter{}, adapter)

	cfg.Mode = "carrier-pigeon"
	_, err = NewAdapter(cfg)
	require.Error(t, err)
}
