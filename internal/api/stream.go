package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gpsbench/dragtimer/internal/monitoring"
	"github.com/gpsbench/dragtimer/internal/run"
)

// TelemetryHub fans telemetry snapshots out to SSE clients. It is wired into
// the state machine's observer so every processed sample reaches every open
// stream. Slow clients are skipped, never waited on.
type TelemetryHub struct {
	mu          sync.Mutex
	subscribers map[string]chan run.Telemetry
}

func NewTelemetryHub() *TelemetryHub {
	return &TelemetryHub{subscribers: make(map[string]chan run.Telemetry)}
}

func hubID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new stream. The returned ID identifies the channel
// when unsubscribing.
func (h *TelemetryHub) Subscribe() (string, chan run.Telemetry) {
	id := hubID()
	ch := make(chan run.Telemetry, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

func (h *TelemetryHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish delivers a snapshot to all subscribers without blocking.
func (h *TelemetryHub) Publish(tel run.Telemetry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- tel:
		default:
			// channel full, client is not keeping up
		}
	}
}

// telemetryStreamHandler issues Server-Side Events (SSE) with a JSON
// telemetry snapshot per processed sample.
func (s *Server) telemetryStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case tel, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(s.convertTelemetry(tel))
			if err != nil {
				monitoring.Logf("api: failed to marshal telemetry: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
