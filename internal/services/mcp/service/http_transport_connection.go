package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// httpConnection implements mcp.Connection for HTTP-based communication. The
// MCP SDK expects a bidirectional connection, so this adapter maps the
// request/response flow and notification delivery onto separate buffered
// channels: responses route to the pending request that asked for them,
// everything else goes to the SSE notification channel.
type httpConnection struct {
	sessionID  string
	reqChan    chan jsonrpc.Message
	notifyChan chan jsonrpc.Message
	closed     chan struct{}
	ready      chan struct{} // signals when Server.Connect has started reading
	readyOnce  sync.Once

	mu         sync.Mutex
	closedFlag bool

	pendingMu   sync.Mutex
	pendingReqs map[jsonrpc.ID]chan jsonrpc.Message
}

// Read implements mcp.Connection.Read. The first Read signals readiness so
// the HTTP handler knows the server goroutine is consuming messages.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	c.readyOnce.Do(func() {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	})

	select {
	case msg, ok := <-c.reqChan:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection.Write. Responses with an ID matching a
// pending request route to that request's channel; notifications and
// unmatched responses go to the notification channel for SSE delivery.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}

	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.pendingMu.Lock()
		respChan, exists := c.pendingReqs[resp.ID]
		c.pendingMu.Unlock()

		if exists {
			if c.isClosed() {
				return fmt.Errorf("connection closed")
			}
			select {
			case respChan <- msg:
				return nil
			case <-c.closed:
				return fmt.Errorf("connection closed")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.notifyChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *httpConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedFlag
}

// Close implements mcp.Connection.Close. It drains all waiters so a dropped
// session cannot leave goroutines blocked on per-session reads or writes.
// Close is idempotent.
func (c *httpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closedFlag {
		return nil
	}
	c.closedFlag = true
	close(c.closed)
	close(c.reqChan)
	close(c.notifyChan)

	c.pendingMu.Lock()
	for _, respChan := range c.pendingReqs {
		close(respChan)
	}
	c.pendingReqs = nil
	c.pendingMu.Unlock()

	return nil
}

// SessionID implements mcp.Connection.SessionID.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}
