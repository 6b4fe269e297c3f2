package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
)

// Client speaks line-delimited JSON-RPC 2.0 to a signal-cli daemon over TCP.
// One connection serves both directions: requests issued through Call and
// unsolicited receive notifications pushed by the daemon.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notifications() <-chan Notification
	Done() <-chan struct{}
}

type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type client struct {
	addr        string
	callTimeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	pending map[int64]chan *response
	done    chan struct{}

	nextID        atomic.Int64
	notifications chan Notification
}

func NewClient(addr string, callTimeout time.Duration) Client {
	return &client{
		addr:          addr,
		callTimeout:   callTimeout,
		pending:       make(map[int64]chan *response),
		notifications: make(chan Notification, 64),
	}
}

func (c *client) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to dial signal-cli at %s: %w", c.addr, err)
	}

	done := make(chan struct{})

	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	// Drop any previous connection so its read loop winds down; each loop
	// owns the done channel it was started with.
	if prev != nil {
		prev.Close()
	}

	go c.readLoop(conn, done)
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Done is closed when the read loop exits, i.e. the connection dropped.
func (c *client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *client) Notifications() <-chan Notification {
	return c.notifications
}

func (c *client) readLoop(conn net.Conn, done chan struct{}) {
	ctx := context.Background()

	defer func() {
		c.mu.Lock()
		// A superseded loop must not drain calls in flight on the
		// replacement connection.
		if c.done == done {
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
		}
		c.mu.Unlock()
		close(done)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Warnw(ctx, "skipping malformed jsonrpc line", "error", err)
			continue
		}

		if resp.ID == nil {
			// Notification pushed by the daemon.
			select {
			case c.notifications <- Notification{Method: resp.Method, Params: resp.Params}:
			default:
				log.Warnw(ctx, "notification buffer full, dropping event", "method", resp.Method)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		if ok {
			delete(c.pending, *resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
			close(ch)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warnw(ctx, "signal-cli connection closed", "error", err)
	}
}

func (c *client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonrpc request: %w", err)
	}
	payload = append(payload, '\n')

	ch := make(chan *response, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("signal-cli client is not connected")
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if _, err := conn.Write(payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to write jsonrpc request: %w", err)
	}

	timeout := c.callTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection closed while waiting for %s", method)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("call %s: %w", method, resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s timed out after %s", method, timeout)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
