package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// httpSession maintains state for a single MCP session in memory. It tracks
// liveness and the active connection so cleanup and SSE delivery can be
// scoped to one client session.
type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
}

// sessionStore owns every live session and the per-session start guards.
// All map access goes through it; nothing else holds the lock, which keeps
// the transition rules (create on initialize, reject unknown ids, close on
// DELETE, expire on idle) in one place.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*httpSession
	starters map[string]*sync.Once
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*httpSession),
		starters: make(map[string]*sync.Once),
	}
}

func (s *sessionStore) add(session *httpSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.id] = session
}

func (s *sessionStore) lookup(id string) (*httpSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// touch refreshes the session's activity timestamp.
func (s *sessionStore) touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.lastUsed = time.Now()
	}
}

// remove drops the session and its start guard, returning the removed
// session so the caller can close its connection outside the lock. Removing
// an unknown id is a no-op.
func (s *sessionStore) remove(id string) *httpSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.sessions[id]
	delete(s.sessions, id)
	delete(s.starters, id)
	return session
}

// starter returns the sync.Once guarding server startup for the session.
func (s *sessionStore) starter(id string) *sync.Once {
	s.mu.Lock()
	defer s.mu.Unlock()
	once, ok := s.starters[id]
	if !ok {
		once = &sync.Once{}
		s.starters[id] = once
	}
	return once
}

// expire removes every session idle since before the cutoff and returns the
// removed sessions so the caller can close their connections.
func (s *sessionStore) expire(cutoff time.Time) []*httpSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*httpSession
	for id, session := range s.sessions {
		if session.lastUsed.Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
			delete(s.starters, id)
		}
	}
	return expired
}

// Connect implements mcp.Transport.Connect. Each call creates a fresh
// session and connection; the connection waits for HTTP requests.
func (t *HTTPTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	sessionID := t.generateSessionID()

	conn := &httpConnection{
		sessionID:   sessionID,
		reqChan:     make(chan jsonrpc.Message, defaultChannelBufferSize),
		notifyChan:  make(chan jsonrpc.Message, defaultChannelBufferSize),
		closed:      make(chan struct{}),
		ready:       make(chan struct{}, 1),
		pendingReqs: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}

	now := time.Now()
	t.store.add(&httpSession{
		id:        sessionID,
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
	})

	return conn, nil
}

func (t *HTTPTransport) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionExpirationTime)
			for _, session := range t.store.expire(cutoff) {
				_ = session.conn.Close()
			}
		}
	}
}

// ensureServerRunning starts the MCP server goroutine for the session exactly
// once, then waits briefly for the connection to become ready. Readiness is
// best-effort: if the server has not started reading yet it will once the
// first message lands.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}

	once := t.store.starter(session.id)
	sessionTransport := &sessionTransport{conn: session.conn}

	once.Do(func() {
		go func() {
			serverSession, err := t.server.Connect(t.serverCtx, sessionTransport, nil)
			if err != nil {
				log.Printf("Failed to connect MCP server session %s: %v", session.id, err)
				return
			}
			_ = serverSession.Wait()
		}()
	})

	select {
	case <-session.conn.ready:
	case <-t.readyAfterOrDefault()(t.serverReadyTimeoutOrDefault()):
	case <-t.serverCtx.Done():
	}
}

func (t *HTTPTransport) readyAfterOrDefault() func(time.Duration) <-chan time.Time {
	if t == nil || t.readyAfter == nil {
		return time.After
	}
	return t.readyAfter
}

func (t *HTTPTransport) serverReadyTimeoutOrDefault() time.Duration {
	if t == nil || t.serverReadyTimeout <= 0 {
		return defaultSessionReadyTimeout
	}
	return t.serverReadyTimeout
}

// sessionTransport returns a specific pre-existing connection, which lets
// Server.Connect drive one already-created session.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.Connect.
func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

var sessionCounter atomic.Uint64

func (t *HTTPTransport) generateSessionID() string {
	randomReader := rand.Read
	if t != nil && t.randomReader != nil {
		randomReader = t.randomReader
	}
	return generateSessionIDWithRandomRead(randomReader)
}

// generateSessionIDWithRandomRead builds a session id from crypto/rand bytes
// combined with a process-wide counter to prevent collisions.
func generateSessionIDWithRandomRead(randomRead func([]byte) (int, error)) string {
	b := make([]byte, 8)
	if randomRead == nil {
		randomRead = rand.Read
	}
	if _, err := randomRead(b); err != nil {
		// Fallback to timestamp + counter if crypto/rand fails.
		counter := sessionCounter.Add(1)
		return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), counter)
	}
	counter := sessionCounter.Add(1)
	return fmt.Sprintf("session_%s_%d", hex.EncodeToString(b), counter)
}
