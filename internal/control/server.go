package control

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/engine"
	"github.com/eruption-project/eruption-sub002/internal/profile"
)

// Core is the engine surface the control plane drives.
type Core interface {
	GetStatus() (engine.Status, error)
	SwitchProfile(path string) error
	SwitchSlot(index int) error
	SetParameter(profileName, scriptName, name string, value any) error
	SubmitCanvasOverride(data []byte) error
	NotifyHotplug(p engine.HotplugPayload) error
	RunSweep(kind device.SweepKind) error
	ActiveProfile() (int, *profile.Profile)
}

// Server exposes the control-plane REST API and websocket streams
// consumed by GUI/CLI/SDK collaborators.
type Server struct {
	core Core
	hub  *Hub
	log  zerolog.Logger
}

func NewServer(core Core, hub *Hub, log zerolog.Logger) *Server {
	return &Server{
		core: core,
		hub:  hub,
		log:  log.With().Str("component", "control").Logger(),
	}
}

// Router builds the gin engine with all endpoints attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		st, err := s.core.GetStatus()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": st.State, "frames": st.Frames})
	})

	api := r.Group("/api")
	{
		api.GET("/status", func(c *gin.Context) {
			st, err := s.core.GetStatus()
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, st)
		})

		api.GET("/profile", func(c *gin.Context) {
			slot, p := s.core.ActiveProfile()
			c.JSON(http.StatusOK, gin.H{"slot": slot, "profile": p})
		})

		api.POST("/profile/switch", func(c *gin.Context) {
			var req struct {
				Path string `json:"path" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := s.core.SwitchProfile(req.Path); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "switched", "path": req.Path})
		})

		api.POST("/slot/:index", func(c *gin.Context) {
			idx, err := strconv.Atoi(c.Param("index"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot index"})
				return
			}
			if err := s.core.SwitchSlot(idx); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "switched", "slot": idx})
		})

		api.POST("/parameter", func(c *gin.Context) {
			var req struct {
				Profile string `json:"profile"`
				Script  string `json:"script" binding:"required"`
				Name    string `json:"name" binding:"required"`
				Value   any    `json:"value"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := s.core.SetParameter(req.Profile, req.Script, req.Name, req.Value); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "applied"})
		})

		// Ambient/image-overlay proxies push one raw RGBA frame that
		// bypasses scripted compositing for a single tick.
		api.POST("/canvas", func(c *gin.Context) {
			var req struct {
				Data []byte `json:"data" binding:"required"` // base64 RGBA
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := s.core.SubmitCanvasOverride(req.Data); err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "submitted"})
		})

		api.POST("/hotplug", func(c *gin.Context) {
			var req engine.HotplugPayload
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := s.core.NotifyHotplug(req); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "reconfigured"})
		})

		api.POST("/debug/sweep", func(c *gin.Context) {
			var req struct {
				Kind string `json:"kind" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := s.core.RunSweep(device.SweepKind(req.Kind)); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "running", "kind": req.Kind})
		})
	}

	r.GET("/ws/frames", func(c *gin.Context) {
		s.hub.HandleFrames(c.Writer, c.Request)
	})
	r.GET("/ws/status", func(c *gin.Context) {
		s.handleStatus(c.Writer, c.Request)
	})

	return r
}

// statusInterval paces the diagnostics stream.
const statusInterval = time.Second

// handleStatus upgrades a client onto a periodic status snapshot stream.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		st, err := s.core.GetStatus()
		if err != nil {
			s.log.Debug().Err(err).Msg("status snapshot failed, closing stream")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.WriteJSON(st); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
