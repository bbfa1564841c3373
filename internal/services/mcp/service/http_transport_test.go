package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

// stubService satisfies groups.Service with static data so transport tests
// can run a real MCP server without a backend.
type stubService struct{}

func (stubService) DefaultGroup(context.Context) (groups.GroupRef, error) {
	return groups.GroupRef{ID: "g1", Name: "Trip", CurrencyCode: "EUR"}, nil
}

func (stubService) ResolveGroup(_ context.Context, sel groups.Selector) (groups.GroupRef, error) {
	return groups.GroupRef{ID: sel.GroupID, CurrencyCode: "EUR"}, nil
}

func (stubService) ListMembers(context.Context, string) ([]groups.Member, error) {
	return []groups.Member{{ID: "m1", Name: "Alice"}}, nil
}

func (stubService) CreateExpense(_ context.Context, expense groups.Expense) (groups.Entry, error) {
	return groups.Entry{ID: "e1", GroupID: expense.GroupID, Title: expense.Title}, nil
}

func (stubService) ListEntries(context.Context, string, int, int) ([]groups.Entry, error) {
	return nil, nil
}

func (stubService) Balance(_ context.Context, group groups.GroupRef, _ []groups.Member, _ []groups.Entry) (groups.BalanceSummary, error) {
	return groups.BalanceSummary{CurrencyCode: group.CurrencyCode}, nil
}

func newTestTransport(t *testing.T) *HTTPTransport {
	t.Helper()
	server, err := New(stubService{})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	transport := NewHTTPTransportWithServer("localhost:0", server.mcpServer)
	t.Cleanup(transport.serverCancel)
	return transport
}

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test-client","version":"0.0.1"}}}`

func postMessage(t *testing.T, transport *HTTPTransport, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	w := httptest.NewRecorder()
	transport.handleMessages(w, req)
	return w
}

func TestHandleMessagesSessionTransitions(t *testing.T) {
	t.Run("non-initialize without session is rejected", func(t *testing.T) {
		transport := newTestTransport(t)
		w := postMessage(t, transport, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "-32000") {
			t.Errorf("expected session error code, got %q", w.Body.String())
		}
	})

	t.Run("initialize creates a session", func(t *testing.T) {
		transport := newTestTransport(t)
		w := postMessage(t, transport, "", initializeBody)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		sessionID := w.Header().Get("Mcp-Session-Id")
		if sessionID == "" {
			t.Fatal("expected session id header")
		}
		if !strings.Contains(w.Body.String(), `"result"`) {
			t.Errorf("expected initialize result, got %q", w.Body.String())
		}
		if _, ok := transport.store.lookup(sessionID); !ok {
			t.Error("session not tracked in store")
		}
	})

	t.Run("each initialize gets a fresh session", func(t *testing.T) {
		transport := newTestTransport(t)
		first := postMessage(t, transport, "", initializeBody).Header().Get("Mcp-Session-Id")
		second := postMessage(t, transport, "", initializeBody).Header().Get("Mcp-Session-Id")
		if first == "" || second == "" || first == second {
			t.Errorf("expected distinct session ids, got %q and %q", first, second)
		}
	})

	t.Run("unknown session is rejected for non-initialize", func(t *testing.T) {
		transport := newTestTransport(t)
		w := postMessage(t, transport, "session_bogus_1", `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("initialize with stale session creates a new one", func(t *testing.T) {
		transport := newTestTransport(t)
		w := postMessage(t, transport, "session_stale_9", initializeBody)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		sessionID := w.Header().Get("Mcp-Session-Id")
		if sessionID == "" || sessionID == "session_stale_9" {
			t.Errorf("expected fresh session id, got %q", sessionID)
		}
	})

	t.Run("malformed JSON-RPC is rejected", func(t *testing.T) {
		transport := newTestTransport(t)
		w := postMessage(t, transport, "", `{not json`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestHandleDelete(t *testing.T) {
	transport := newTestTransport(t)

	sessionID := postMessage(t, transport, "", initializeBody).Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("expected session id")
	}

	deleteSession := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		if id != "" {
			req.Header.Set("Mcp-Session-Id", id)
		}
		w := httptest.NewRecorder()
		transport.handleDelete(w, req)
		return w
	}

	if w := deleteSession(sessionID); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, ok := transport.store.lookup(sessionID); ok {
		t.Error("session should be removed")
	}

	// Messages on the closed session are rejected.
	w := postMessage(t, transport, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/list","params":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 after close, got %d", w.Code)
	}

	// Deleting again is idempotent.
	if w := deleteSession(sessionID); w.Code != http.StatusNoContent {
		t.Errorf("expected 204 on repeat delete, got %d", w.Code)
	}

	// Missing session header is a session error.
	if w := deleteSession(""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without session id, got %d", w.Code)
	}
}

func TestSessionStore(t *testing.T) {
	t.Run("add lookup remove", func(t *testing.T) {
		store := newSessionStore()
		session := &httpSession{id: "s1", conn: &httpConnection{}, lastUsed: time.Now()}
		store.add(session)

		got, ok := store.lookup("s1")
		if !ok || got != session {
			t.Fatal("expected session to be tracked")
		}

		if removed := store.remove("s1"); removed != session {
			t.Error("expected removed session back")
		}
		if _, ok := store.lookup("s1"); ok {
			t.Error("expected session gone")
		}
		if removed := store.remove("s1"); removed != nil {
			t.Error("removing unknown id is a no-op")
		}
	})

	t.Run("touch refreshes activity", func(t *testing.T) {
		store := newSessionStore()
		stale := time.Now().Add(-2 * time.Hour)
		store.add(&httpSession{id: "s1", lastUsed: stale})
		store.touch("s1")
		session, _ := store.lookup("s1")
		if !session.lastUsed.After(stale) {
			t.Error("expected lastUsed to advance")
		}
	})

	t.Run("expire removes idle sessions only", func(t *testing.T) {
		store := newSessionStore()
		store.add(&httpSession{id: "old", conn: &httpConnection{closed: make(chan struct{})}, lastUsed: time.Now().Add(-2 * time.Hour)})
		store.add(&httpSession{id: "new", conn: &httpConnection{closed: make(chan struct{})}, lastUsed: time.Now()})

		expired := store.expire(time.Now().Add(-time.Hour))
		if len(expired) != 1 || expired[0].id != "old" {
			t.Fatalf("expected only the idle session, got %+v", expired)
		}
		if _, ok := store.lookup("new"); !ok {
			t.Error("active session must survive")
		}
	})

	t.Run("starter is stable per session", func(t *testing.T) {
		store := newSessionStore()
		store.add(&httpSession{id: "s1"})
		if store.starter("s1") != store.starter("s1") {
			t.Error("expected the same sync.Once per session")
		}
	})
}

func TestGenerateSessionID(t *testing.T) {
	t.Run("unique ids", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			id := generateSessionIDWithRandomRead(nil)
			if !strings.HasPrefix(id, "session_") {
				t.Fatalf("unexpected id format %q", id)
			}
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = struct{}{}
		}
	})

	t.Run("falls back when randomness fails", func(t *testing.T) {
		id := generateSessionIDWithRandomRead(func([]byte) (int, error) {
			return 0, fmt.Errorf("entropy exhausted")
		})
		if !strings.HasPrefix(id, "session_") {
			t.Errorf("unexpected fallback id %q", id)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	transport := NewHTTPTransport("")
	t.Cleanup(transport.serverCancel)

	req := httptest.NewRequest(http.MethodGet, "/mcp/health", nil)
	w := httptest.NewRecorder()
	transport.handleHealth(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}
