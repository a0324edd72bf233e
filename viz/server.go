// Package viz publishes simulation frames to websocket clients for external
// renderers. The simulation never blocks on a slow client; frames it cannot
// deliver are dropped.
package viz

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/haze/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FrameAgent is one agent's state in a published frame.
type FrameAgent struct {
	ID      uint32    `json:"id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	VX      float64   `json:"vx"`
	VY      float64   `json:"vy"`
	Heading float64   `json:"heading"`
	Haze    float64   `json:"haze"`
	Entropy float64   `json:"entropy"`
	Tensor  []float64 `json:"tensor,omitempty"`
}

// Frame is one tick's worth of world state for rendering.
type Frame struct {
	Type   string       `json:"type"`
	Tick   int32        `json:"tick"`
	WorldW float64      `json:"world_w"`
	WorldH float64      `json:"world_h"`
	Agents []FrameAgent `json:"agents"`
}

// client is a connected websocket with serialized writes.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server broadcasts frames to all connected clients.
type Server struct {
	addr          string
	includeTensor bool

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates a frame publisher listening on addr.
func NewServer(addr string, includeTensor bool) *Server {
	return &Server{
		addr:          addr,
		includeTensor: includeTensor,
		clients:       make(map[*client]struct{}),
	}
}

// Start serves the websocket endpoint in a background goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	go func() {
		slog.Info("viz listening", "addr", s.addr)
		if err := http.ListenAndServe(s.addr, mux); err != nil {
			slog.Error("viz server stopped", "error", err)
		}
	}()
}

func (s *Server) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(wr, r, nil)
	if err != nil {
		slog.Warn("viz upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	slog.Info("viz client connected", "remote", conn.RemoteAddr().String())

	// Drain reads so pings and close frames are handled.
	go func() {
		defer s.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Publish builds a frame from the world and sends it to every client.
// Clients whose send fails are dropped.
func (s *Server) Publish(w *sim.World) {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	if n == 0 {
		return
	}

	frame := s.buildFrame(w)

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.send(frame); err != nil {
			s.drop(c)
		}
	}
}

func (s *Server) buildFrame(w *sim.World) *Frame {
	cfg := w.Config()
	views := w.Agents()

	frame := &Frame{
		Type:   "frame",
		Tick:   w.Tick(),
		WorldW: cfg.World.Width,
		WorldH: cfg.World.Height,
		Agents: make([]FrameAgent, 0, len(views)),
	}

	for _, v := range views {
		fa := FrameAgent{
			ID:      v.ID,
			X:       v.Pos.X,
			Y:       v.Pos.Y,
			VX:      v.Vel.X,
			VY:      v.Vel.Y,
			Heading: v.Heading,
			Haze:    v.Haze,
			Entropy: v.Entropy,
		}
		if s.includeTensor {
			fa.Tensor = v.Tensor.Flatten()
		}
		frame.Agents = append(frame.Agents, fa)
	}

	return frame
}
