package control

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Hub streams composited frames to websocket clients. The scheduler
// publishes through a capacity-1 newest-wins channel, so a slow client
// can never stall frame production.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	frames  chan []byte
	frameID uint64
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "ws").Logger(),
		clients: map[*websocket.Conn]bool{},
		frames:  make(chan []byte, 1),
	}
}

// PublishFrame hands a frame to the broadcaster without blocking.
// Called on the scheduler goroutine.
func (h *Hub) PublishFrame(frame []canvas.Color) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 {
		return
	}
	rgba := make([]byte, len(frame)*4)
	for i, c := range frame {
		rgba[i*4+0] = c.R
		rgba[i*4+1] = c.G
		rgba[i*4+2] = c.B
		rgba[i*4+3] = c.A
	}
	select {
	case h.frames <- rgba:
	default:
		select {
		case <-h.frames:
		default:
		}
		select {
		case h.frames <- rgba:
		default:
		}
	}
}

// Run broadcasts published frames until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case rgba := <-h.frames:
			h.broadcast(rgba)
		}
	}
}

type framePayload struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGBA    []byte `json:"rgba"`
}

func (h *Hub) broadcast(rgba []byte) {
	h.frameID++
	b, _ := json.Marshal(framePayload{T: time.Now().UnixNano(), FrameID: h.frameID, RGBA: rgba})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug().Err(err).Msg("frame write failed, dropping client")
			delete(h.clients, c)
			_ = c.Close()
		}
	}
}

// HandleFrames upgrades a client onto the frame stream.
func (h *Hub) HandleFrames(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}
