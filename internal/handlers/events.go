package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

const (
	eventsWSReadLimit = 4 << 10
	eventsPongWait    = 60 * time.Second
	eventsPingPeriod  = 50 * time.Second
	eventsBuffer      = 64
)

// Event types pushed to the UI
const (
	EventStatus           = "status"
	EventAnalysisComplete = "analysis_complete"
	EventImageSlot        = "image_slot"
	EventAudioReady       = "audio_ready"
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is the JSON shape sent to WebSocket clients.
type Event struct {
	Type      string        `json:"type"`
	RequestID uuid.UUID     `json:"request_id,omitempty"`
	Status    models.Status `json:"status,omitempty"`
	Index     *int          `json:"index,omitempty"`
	URL       *string       `json:"url,omitempty"`
	Error     *string       `json:"error,omitempty"`
	Word      string        `json:"word,omitempty"`
}

// Hub broadcasts pipeline events to every connected WebSocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
	closed  bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// Publish sends ev to all clients. A client whose buffer is full misses the
// event; it can resync with GET /api/state.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("type", ev.Type).Msg("events client too slow, dropping event")
		}
	}
}

// Hooks returns pipeline hooks that publish every callback as an event.
// onAnalysis, when set, runs before the event is published.
func (h *Hub) Hooks(onAnalysis func(models.WordAnalysis)) pipeline.Hooks {
	return pipeline.Hooks{
		OnAnalysisComplete: func(a models.WordAnalysis) {
			if onAnalysis != nil {
				onAnalysis(a)
			}
			h.Publish(Event{Type: EventAnalysisComplete, Word: a.Word})
		},
		OnImageSlotUpdate: func(id uuid.UUID, index int, url, errMsg *string) {
			i := index
			h.Publish(Event{Type: EventImageSlot, RequestID: id, Index: &i, URL: url, Error: errMsg})
		},
		OnAudioReady: func(id uuid.UUID, audio []byte) {
			h.Publish(Event{Type: EventAudioReady, RequestID: id})
		},
		OnStatusChange: func(id uuid.UUID, status models.Status) {
			h.Publish(Event{Type: EventStatus, RequestID: id, Status: status})
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

func (h *Hub) subscribe() (chan Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan Event, eventsBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// ServeWS handles GET /api/events: WebSocket stream of pipeline events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.subscribe()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.unsubscribe(ch)
		log.Warn().Err(err).Msg("events ws upgrade failed")
		return
	}
	defer conn.Close()
	defer h.unsubscribe(ch)

	conn.SetReadLimit(eventsWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		return nil
	})

	// The client sends nothing; reading only detects a closed connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("events ws read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			if err := writeWSJSON(conn, ev); err != nil {
				log.Debug().Err(err).Msg("events ws write")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
