// Package notify pushes badge unlocks to the learner's open pages over
// websockets.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/studyhub/internal/metrics"
	"github.com/terra-clan/studyhub/internal/models"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)


// Message is the JSON frame sent to the page
type Message struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Badges      []models.Badge `json:"badges,omitempty"`
	Data        string         `json:"data,omitempty"`
}

type client struct {
	learnerID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub tracks open connections per learner
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	total    int
	origins  []string
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub. Pages on the server's own origin may always
// connect; allowedOrigins lists further origins, "*" meaning any.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		origins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header, same-origin pages
// and the configured origins
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	slog.Warn("rejected websocket origin", "origin", origin)
	return false
}

// BadgeUnlocked sends one badge message to each of the learner's connections
func (h *Hub) BadgeUnlocked(learnerID string, badge models.Badge, badges []models.Badge) {
	h.Send(learnerID, Message{
		Type:        "badge",
		Name:        badge.Name,
		Description: badge.Description,
		Badges:      badges,
	})
}

// Send queues msg for every connection of learnerID. Slow connections
// whose buffer is full miss the message.
func (h *Hub) Send(learnerID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal notification", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[learnerID] {
		select {
		case c.send <- data:
		default:
			slog.Warn("notification dropped, client too slow", "learner_id", learnerID, "type", msg.Type)
		}
	}
}

// Connections returns the number of open connections for learnerID
func (h *Hub) Connections(learnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[learnerID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.learnerID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.learnerID] = set
	}
	set[c] = struct{}{}
	h.total++
	metrics.NotifyConnections.Set(float64(h.total))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.learnerID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.learnerID)
	}
	h.total--
	metrics.NotifyConnections.Set(float64(h.total))
}

// Serve upgrades the request and keeps the connection registered until
// the page goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, learnerID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	c := &client{learnerID: learnerID, conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := json.Marshal(Message{Type: "connected", Data: "Listening for badge notifications"}); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	slog.Info("notification websocket connected", "learner_id", learnerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Hub -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					slog.Debug("failed to send notification", "error", err)
					return
				}
			}
		}
	}()

	// WebSocket reads only detect the close
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	<-ctx.Done()
	// Unblock the reader if the writer exited first.
	_ = conn.Close()
	wg.Wait()
	slog.Info("notification websocket disconnected", "learner_id", learnerID)
}
