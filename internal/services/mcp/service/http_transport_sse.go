package service

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// handleSSE handles GET /mcp for Server-Sent Events streaming. SSE is a
// notification-only path; request/reply traffic stays on POST. The stream
// refreshes the session's activity timestamp so long-lived listeners are not
// expired as idle.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	if sessionID == "" {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}
	session, ok := t.store.lookup(sessionID)
	if !ok {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	ctx := r.Context()
	t.store.touch(sessionID)

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.conn.closed:
			return
		case <-ticker.C:
			t.store.touch(sessionID)
		case msg := <-session.conn.notifyChan:
			t.store.touch(sessionID)

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal SSE message: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}
