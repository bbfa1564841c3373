package service

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// handleMessages handles POST /mcp for JSON-RPC requests and notifications.
// Session rules: an initialize request without a session (or with a stale
// one) creates a fresh session; any other message must carry a known
// Mcp-Session-Id or it is rejected with a JSON-RPC session error.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read request body: %v", err)
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		log.Printf("Invalid JSON-RPC message: %v", err)
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return
	}

	isInitialize := false
	if req, ok := msg.(*jsonrpc.Request); ok {
		isInitialize = req.Method == "initialize"
	}

	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	var session *httpSession
	if sessionID != "" {
		found, ok := t.store.lookup(sessionID)
		if !ok {
			if !isInitialize {
				writeSessionError(w, "Invalid session ID")
				return
			}
			sessionID = ""
		} else {
			session = found
		}
	}

	if session == nil {
		if !isInitialize {
			writeSessionError(w, "Invalid or missing session ID")
			return
		}
		conn, err := t.Connect(r.Context())
		if err != nil {
			log.Printf("Failed to create session: %v", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		sessionID = conn.SessionID()
		session, _ = t.store.lookup(sessionID)
		if session == nil {
			http.Error(w, "Failed to retrieve session after creation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Mcp-Session-Id", sessionID)
	}

	t.store.touch(sessionID)
	t.ensureServerRunning(session)

	// In JSON-RPC 2.0 the zero ID marks a notification; everything else
	// expects a response.
	isRequest := true
	switch v := msg.(type) {
	case *jsonrpc.Request:
		isRequest = v.ID != jsonrpc.ID{}
	case *jsonrpc.Response:
		http.Error(w, "Invalid message type: response", http.StatusBadRequest)
		return
	}

	if !isRequest {
		select {
		case session.conn.reqChan <- msg:
		case <-r.Context().Done():
			http.Error(w, "Request cancelled", http.StatusRequestTimeout)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		http.Error(w, "Invalid request type", http.StatusBadRequest)
		return
	}

	respChan := make(chan jsonrpc.Message, 1)
	session.conn.pendingMu.Lock()
	session.conn.pendingReqs[req.ID] = respChan
	session.conn.pendingMu.Unlock()

	clearPending := func() {
		session.conn.pendingMu.Lock()
		delete(session.conn.pendingReqs, req.ID)
		session.conn.pendingMu.Unlock()
	}

	select {
	case session.conn.reqChan <- msg:
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}

	select {
	case resp := <-respChan:
		clearPending()
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Failed to write response: %v", err)
		}
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	case <-time.After(defaultRequestTimeout):
		clearPending()
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleDelete handles DELETE /mcp, closing the addressed session. Deletion
// is idempotent: deleting an unknown or already-closed session succeeds.
func (t *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	if sessionID == "" {
		writeSessionError(w, "Missing session ID")
		return
	}

	if session := t.store.remove(sessionID); session != nil {
		_ = session.conn.Close()
		log.Printf("Session %s closed by client", sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	payload := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32000,
			"message": message,
		},
		"id": nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Session error"},"id":null}`))
		return
	}
	_, _ = w.Write(data)
}
