package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeDaemon listens on a random port and feeds accepted connections to
// serve.
func startFakeDaemon(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()

	return ln.Addr().String()
}

func TestClientCall(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				var req request
				require.NoError(t, json.Unmarshal(scanner.Bytes(), &req))
				assert.Equal(t, "2.0", req.JSONRPC)

				fmt.Fprintf(conn, `{"jsonrpc":"2.0","id":%d,"result":{"ok":true}}`+"\n", req.ID)
			}
		})

		c := NewClient(addr, 5*time.Second)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		result, err := c.Call(context.Background(), "listGroups", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(result))
	})

	t.Run("rpc error surfaces", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				var req request
				if json.Unmarshal(scanner.Bytes(), &req) != nil {
					continue
				}
				fmt.Fprintf(conn, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`+"\n", req.ID)
			}
		})

		c := NewClient(addr, 5*time.Second)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		_, err := c.Call(context.Background(), "bogus", nil)
		require.Error(t, err)

		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, -32601, rpcErr.Code)
	})

	t.Run("concurrent calls correlate by id", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				var req request
				if json.Unmarshal(scanner.Bytes(), &req) != nil {
					continue
				}
				go func(id int64, method string) {
					// Answer out of order.
					time.Sleep(time.Duration(id%3) * 10 * time.Millisecond)
					fmt.Fprintf(conn, `{"jsonrpc":"2.0","id":%d,"result":"%s"}`+"\n", id, method)
				}(req.ID, req.Method)
			}
		})

		c := NewClient(addr, 5*time.Second)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		type outcome struct {
			method string
			got    string
			err    error
		}

		results := make(chan outcome, 10)
		for i := 0; i < 10; i++ {
			method := fmt.Sprintf("method-%d", i)
			go func(m string) {
				raw, err := c.Call(context.Background(), m, nil)
				var got string
				if err == nil {
					err = json.Unmarshal(raw, &got)
				}
				results <- outcome{method: m, got: got, err: err}
			}(method)
		}

		for i := 0; i < 10; i++ {
			res := <-results
			require.NoError(t, res.err)
			// The fake echoes the method name, so a mixed-up id would
			// surface as a mismatched result.
			assert.Equal(t, res.method, res.got)
		}
	})

	t.Run("call times out", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			// Never answer.
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
			}
		})

		c := NewClient(addr, 100*time.Millisecond)
		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		_, err := c.Call(context.Background(), "receive", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("call without connection", func(t *testing.T) {
		c := NewClient("127.0.0.1:1", time.Second)
		_, err := c.Call(context.Background(), "receive", nil)
		require.Error(t, err)
	})
}

func TestClientNotifications(t *testing.T) {
	t.Parallel()

	addr := startFakeDaemon(t, func(conn net.Conn) {
		fmt.Fprintln(conn, `{"jsonrpc":"2.0","method":"receive","params":{"envelope":{"sourceUuid":"uuid-1","timestamp":123,"dataMessage":{"message":"hi","groupInfo":{"groupId":"g1"}}}}}`)
	})

	c := NewClient(addr, time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case notif := <-c.Notifications():
		assert.Equal(t, "receive", notif.Method)

		var entry ReceiveEntry
		require.NoError(t, json.Unmarshal(notif.Params, &entry))
		require.NotNil(t, entry.Envelope)
		assert.Equal(t, "uuid-1", entry.Envelope.SourceUUID)
		assert.Equal(t, "hi", entry.Envelope.DataMessage.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestClientReconnect(t *testing.T) {
	t.Parallel()

	t.Run("redial replaces the previous connection", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				var req request
				if json.Unmarshal(scanner.Bytes(), &req) != nil {
					continue
				}
				fmt.Fprintf(conn, `{"jsonrpc":"2.0","id":%d,"result":"pong"}`+"\n", req.ID)
			}
		})

		c := NewClient(addr, time.Second)
		require.NoError(t, c.Connect(context.Background()))
		first := c.Done()

		require.NoError(t, c.Connect(context.Background()))
		defer c.Close()

		// The superseded connection's read loop exits and closes only its
		// own done channel.
		select {
		case <-first:
		case <-time.After(2 * time.Second):
			t.Fatal("first connection's done channel never closed")
		}

		select {
		case <-c.Done():
			t.Fatal("replacement connection reported done")
		default:
		}

		result, err := c.Call(context.Background(), "ping", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `"pong"`, string(result))
	})

	t.Run("close after redial fires done exactly once", func(t *testing.T) {
		addr := startFakeDaemon(t, func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
			}
		})

		c := NewClient(addr, time.Second)
		require.NoError(t, c.Connect(context.Background()))
		require.NoError(t, c.Connect(context.Background()))

		done := c.Done()
		require.NoError(t, c.Close())

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("done channel never closed after close")
		}
	})
}

func TestClientDoneOnDisconnect(t *testing.T) {
	t.Parallel()

	addr := startFakeDaemon(t, func(conn net.Conn) {
		conn.Close()
	})

	c := NewClient(addr, time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done channel never closed after disconnect")
	}
}
