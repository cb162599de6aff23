// Package live pushes match events to websocket subscribers.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"codearena/pkg/utils/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// EventScores is broadcast whenever a room's scores change.
	EventScores = "update_scores"
	// EventFinished is broadcast exactly once when a match ends.
	EventFinished = "match_finished"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 50 * time.Second
	sendBufferSize = 16
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// FinishedPayload is the body of a match_finished event.
type FinishedPayload struct {
	Result string `json:"result"`
}

// Hub fans match events out to room subscribers. Delivery is best effort
// and at most once; a slow subscriber gets dropped rather than stalling the
// room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the game page; origin policy is handled
			// by the gateway in front of us.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request to a websocket and subscribes it to the room.
// initial, when non-nil, is sent right after the handshake so late joiners
// see the current scores. Serve blocks until the peer disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string, initial *Envelope) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan Envelope, sendBufferSize),
		done: make(chan struct{}),
	}
	h.register(token, sub)
	defer h.unregister(token, sub)

	if initial != nil {
		select {
		case sub.send <- *initial:
		default:
		}
	}

	go sub.writePump()
	sub.readPump()
	return nil
}

// PublishScores broadcasts a score update to the room.
func (h *Hub) PublishScores(token string, update interface{}) {
	h.broadcast(token, Envelope{Event: EventScores, Data: update})
}

// PublishFinished broadcasts the final result to the room.
func (h *Hub) PublishFinished(token string, result string) {
	h.broadcast(token, Envelope{Event: EventFinished, Data: FinishedPayload{Result: result}})
}

// RoomSize returns the number of live subscribers in a room.
func (h *Hub) RoomSize(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[token])
}

// Close drops every subscriber. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for token, subs := range h.rooms {
		for sub := range subs {
			sub.close()
		}
		delete(h.rooms, token)
	}
}

func (h *Hub) broadcast(token string, env Envelope) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.rooms[token]))
	for sub := range h.rooms[token] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.send <- env:
		default:
			// Subscriber is not keeping up; cut it loose.
			logger.Warn(context.Background(), "dropping slow websocket subscriber",
				zap.String("token", token))
			sub.close()
		}
	}
}

func (h *Hub) register(token string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[token] == nil {
		h.rooms[token] = make(map[*subscriber]struct{})
	}
	h.rooms[token][sub] = struct{}{}
}

func (h *Hub) unregister(token string, sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.rooms[token]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, token)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// close signals the pumps to exit. The send channel is never closed so a
// concurrent broadcast cannot panic.
func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// readPump drains incoming frames so pings and close frames are processed.
// Subscribers never send application data.
func (s *subscriber) readPump() {
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case env := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
