// Package stream exposes the per-tick animation frame over WebSocket so an
// external renderer can drive a face from it.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/bus"
)

const (
	// FrameEndpoint is the path for WebSocket frame subscriptions.
	FrameEndpoint = "/frames"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Incoming traffic is close/ping only.
	maxMessageSize = 512
)

// wireFrame is the JSON payload sent once per tick. Vector types serialize
// as plain arrays.
type wireFrame struct {
	Weights          []float32  `json:"weights"`
	Head             [3]float32 `json:"head"`
	Gaze             [2]float32 `json:"gaze"`
	IsBlinking       bool       `json:"isBlinking"`
	State            string     `json:"state"`
	Emotion          string     `json:"emotion"`
	EmotionIntensity float32    `json:"emotionIntensity"`
}

// Server broadcasts animation frames to connected renderer clients.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server
	events   *bus.EventBus
	logger   zerolog.Logger

	clients   map[*client]bool
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates an unstarted frame server on the given address.
func NewServer(addr string, events *bus.EventBus, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Renderer runs on localhost; cross-origin is fine here.
				return true
			},
		},
		events:  events,
		logger:  logger.With().Str("component", "stream").Logger(),
		clients: make(map[*client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins serving frame subscriptions.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(FrameEndpoint, s.handleWebSocket)
	mux.HandleFunc(HealthEndpoint, s.handleHealth)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("addr", s.addr).Msg("frame stream listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("frame stream server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and all client connections.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}
	s.wg.Wait()
	return nil
}

// ClientCount returns the number of connected renderer clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast sends one frame to every connected client. A client that cannot
// keep up has its stale frame dropped; rendering only ever wants the latest.
func (s *Server) Broadcast(frame anim.FrameOutput) {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()
	if n == 0 {
		return
	}

	payload, err := json.Marshal(wireFrame{
		Weights:          frame.Weights.ToSlice(),
		Head:             [3]float32{frame.Head.X(), frame.Head.Y(), frame.Head.Z()},
		Gaze:             [2]float32{frame.Gaze.X(), frame.Gaze.Y()},
		IsBlinking:       frame.IsBlinking,
		State:            string(frame.State),
		Emotion:          string(frame.Emotion),
		EmotionIntensity: frame.EmotionIntensity,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("frame marshal failed")
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 8),
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Debug().Int("clients", total).Msg("renderer connected")
	if s.events != nil {
		s.events.Publish(bus.Event{Type: bus.EventTypeClientConnected, Data: map[string]any{"clients": total}})
	}

	s.wg.Add(2)
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	remaining := len(s.clients)
	s.clientsMu.Unlock()

	c.conn.Close()
	s.logger.Debug().Int("clients", remaining).Msg("renderer disconnected")
	if s.events != nil {
		s.events.Publish(bus.Event{Type: bus.EventTypeClientDisconnected, Data: map[string]any{"clients": remaining}})
	}
}

func (s *Server) writePump(c *client) {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) readPump(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}
		// Incoming messages are ignored; the stream is one-way.
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Clients int    `json:"clients"`
	}{
		Status:  "healthy",
		Service: "personaface-stream",
		Clients: s.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
