package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/match"
)

const (
	maxMessageSize = 4096
	sendBuffer     = 64
)

// StreamMessage is one frame on a match stream.
type StreamMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
	Data    any    `json:"data"`
}

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"
)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	matchID string
}

type outbound struct {
	matchID string
	payload []byte
}

// Hub fans committed updates out to the WebSocket clients of each match.
// Only Run touches the client sets.
type Hub struct {
	upgrader     websocket.Upgrader
	matches      *match.Manager
	logger       *zap.Logger
	pingInterval time.Duration
	writeWait    time.Duration

	rooms      map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	done       chan struct{}
}

// NewHub creates a hub and subscribes it to matches. Run must be started
// for clients to receive anything.
func NewHub(matches *match.Manager, cfg config.HTTPConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	pingInterval, writeWait := cfg.PingInterval, cfg.WriteTimeout
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		matches:      matches,
		logger:       logger,
		pingInterval: pingInterval,
		writeWait:    writeWait,
		rooms:        make(map[string]map[*client]struct{}),
		register:     make(chan *client),
		unregister:   make(chan *client),
		broadcast:    make(chan outbound, 256),
		done:         make(chan struct{}),
	}
	matches.OnCommit(h.publish)
	return h
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			h.rooms = make(map[string]map[*client]struct{})
			return

		case c := <-h.register:
			room, ok := h.rooms[c.matchID]
			if !ok {
				room = make(map[*client]struct{})
				h.rooms[c.matchID] = room
			}
			room[c] = struct{}{}
			h.logger.Debug("stream client registered", zap.String("match_id", c.matchID), zap.Int("clients", len(room)))

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.rooms[msg.matchID] {
				select {
				case c.send <- msg.payload:
				default:
					h.logger.Warn("stream client too slow, dropping", zap.String("match_id", c.matchID))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	room, ok := h.rooms[c.matchID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.matchID)
	}
}

// publish runs under the committing match's lock, so it never blocks.
func (h *Hub) publish(u match.Update) {
	payload, err := json.Marshal(StreamMessage{Type: MessageUpdate, MatchID: u.MatchID, Data: u})
	if err != nil {
		h.logger.Error("failed to encode stream update", zap.String("match_id", u.MatchID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{matchID: u.MatchID, payload: payload}:
	default:
		h.logger.Warn("stream broadcast queue full, update dropped",
			zap.String("match_id", u.MatchID),
			zap.Int("turn_index", u.TurnIndex),
		)
	}
}

// HandleStream upgrades the request and streams updates of the :id match.
// The first frame is the current snapshot. An update committed between the
// snapshot and registration is not resent; clients see the gap in turnIndex.
func (h *Hub) HandleStream(c *gin.Context) {
	id := c.Param("id")
	m, ok := h.matches.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": match.ErrNotFound.Error()})
		return
	}
	snap, err := m.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	first, err := json.Marshal(StreamMessage{Type: MessageSnapshot, MatchID: id, Data: snap})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("match_id", id), zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer), matchID: id}
	cl.send <- first
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(cl)
	go h.readPump(cl)
}

// readPump only watches for close and pong frames; the stream is one-way.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream read error", zap.String("match_id", c.matchID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
