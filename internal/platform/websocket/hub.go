// Package websocket keeps track of open chat sockets. Each connection joins
// one topic (the conversation it belongs to) and is served by a read pump
// that hands every inbound text frame to a per-connection handler and a
// write pump that drains the client's send queue.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	maxFrame     = 16 << 10
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// MessageFunc handles one inbound frame and returns the reply frame. A nil
// reply sends nothing.
type MessageFunc func(ctx context.Context, payload []byte) []byte

// Client represents a single WebSocket connection.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
	conn  Conn
}

// Hub tracks connected clients by topic. All operations are safe for
// concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}
}

// Unregister removes a client and closes its Send channel. Unregistering an
// unknown client is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	if subscribers, ok := h.clients[client.Topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, client.Topic)
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Broadcast queues data for every client on topic. Clients whose buffer is
// full are skipped.
func (h *Hub) Broadcast(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server upgrades HTTP requests and runs the pumps for each connection.
type Server struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewServer accepts upgrades from the given origins. An empty list or "*"
// accepts any origin.
func NewServer(hub *Hub, allowedOrigins []string, logger zerolog.Logger) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Server{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
		logger: logger.With().Str("component", "websocket").Logger(),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Serve upgrades the request, joins topic and answers every text frame with
// handle. It returns once the connection is handed to its pumps.
func (s *Server) Serve(c echo.Context, topic string, handle MessageFunc) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxFrame)

	client := &Client{
		ID:    uuid.New().String(),
		Topic: topic,
		Send:  make(chan []byte, sendBuffer),
		conn:  &gorillaConnAdapter{ws},
	}
	s.hub.Register(client)
	s.logger.Info().
		Str("client_id", client.ID).
		Str("topic", topic).
		Int("topic_clients", s.hub.TopicCount(topic)).
		Int("clients", s.hub.ClientCount()).
		Msg("socket opened")

	go s.writePump(client)
	go s.readPump(client, handle)
	return nil
}

// readPump handles frames one at a time so replies keep request order.
func (s *Server) readPump(client *Client, handle MessageFunc) {
	defer func() {
		s.hub.Unregister(client)
		client.conn.Close()
		s.logger.Info().Str("client_id", client.ID).Int("clients", s.hub.ClientCount()).Msg("socket closed")
	}()

	for {
		msgType, payload, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != gorillawebsocket.TextMessage {
			continue
		}
		reply := handle(context.Background(), payload)
		if reply == nil {
			continue
		}
		select {
		case client.Send <- reply:
		default:
			s.logger.Warn().Str("client_id", client.ID).Msg("send queue full, reply dropped")
		}
	}
}

func (s *Server) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			s.logger.Debug().Err(err).Str("client_id", client.ID).Msg("write failed")
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	a.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
