package daemon

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/themekit/internal/metrics"
)

// UpdateMessage is the wire format of one live-update event. Type is either
// "style-update" (the client swaps the stylesheet in place) or "full-reload".
type UpdateMessage struct {
	Type     string `json:"type"`
	ModuleID string `json:"module_id,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

const (
	UpdateStyle      = "style-update"
	UpdateFullReload = "full-reload"
)

// LiveUpdateHub manages SSE clients for build-result broadcasts.
type LiveUpdateHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	recorder metrics.Recorder
	closed   bool
}

type lrClient struct {
	id   int
	ch   chan UpdateMessage
	done chan struct{}
}

func NewLiveUpdateHub(recorder metrics.Recorder) *LiveUpdateHub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &LiveUpdateHub{clients: map[int]*lrClient{}, recorder: recorder}
}

// ClientCount returns the number of connected SSE clients.
func (h *LiveUpdateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint at /livereload
func (h *LiveUpdateHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan UpdateMessage, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveClients(count)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			h.removeClient(client.id)
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload ping write", "error", err)
			}
		case msg := <-client.ch:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Debug("livereload marshal", "error", err)
				continue
			}
			if _, err := bw.WriteString("data: " + string(data) + "\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload broadcast write", "error", err)
			}
		}
	}
}

func (h *LiveUpdateHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveClients(len(h.clients))
	}
}

// Broadcast sends an update to all clients. Clients whose channels are full
// are dropped; a reconnecting client gets fresh state from the server anyway.
func (h *LiveUpdateHub) Broadcast(msg UpdateMessage) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- msg:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncBroadcast(msg.Type)
	slog.Debug("livereload broadcast",
		"type", msg.Type, "module", msg.ModuleID,
		"clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *LiveUpdateHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveClients(0)
}

// LiveUpdateScript is the JS snippet injected into served pages. Style
// updates swap the matching <link> href in place; everything else reloads.
const LiveUpdateScript = `(() => {
  if (window.__THEMEKIT_LR__) return;
  window.__THEMEKIT_LR__ = true;
  function swapStyle(moduleId, href) {
    const links = document.querySelectorAll('link[rel="stylesheet"]');
    for (const link of links) {
      const key = link.getAttribute('data-module') || '';
      if (key === moduleId || (href && link.getAttribute('href').split('.')[0] === href.split('.')[0])) {
        const next = link.cloneNode();
        next.href = href + (href.includes('?') ? '&' : '?') + 't=' + Date.now();
        next.onload = () => link.remove();
        link.parentNode.insertBefore(next, link.nextSibling);
        return true;
      }
    }
    return false;
  }
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      try {
        const msg = JSON.parse(e.data);
        if (msg.type === 'style-update' && msg.payload) {
          if (swapStyle(msg.module_id, msg.payload)) return;
        }
        location.reload();
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
