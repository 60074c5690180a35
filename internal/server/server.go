// Package server serves the panel to browsers: the rendered document, a
// socket for live updates and touch events, and a small JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/amxpanel/amxpanel/internal/dispatch"
	"github.com/amxpanel/amxpanel/internal/input"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/panel"
	"github.com/amxpanel/amxpanel/internal/session"
)

// Update is a rendered document.
type Update = session.Update

// Panel is the running panel the server fronts.
type Panel interface {
	Subscribe() (<-chan Update, func())
	Latest() Update
	Pointer(ctx context.Context, elementID string, phase input.Phase) error
	Keyboard(ctx context.Context, text string) error
	Keypad(ctx context.Context, text string) error
	Inject(ctx context.Context, raw string) (dispatch.Result, error)
	Snapshot(ctx context.Context) (panel.Snapshot, error)
	Metrics() *observability.MetricsCollector
}

// Config configures the server.
type Config struct {
	Addr         string
	Secret       string   // JWT signing secret; empty disables auth
	PasswordHash string   // bcrypt hash accepted by /api/login
	AllowOrigins []string // CORS origins, default any
	LoginLimit   int      // login attempts per minute per client, default 10
	CommandLimit int      // injected commands per minute per client, default 600
	Viewer       ViewerConfig
}

// Server is the viewer HTTP server.
type Server struct {
	cfg    Config
	panel  Panel
	auth   *Auth
	hub    *Hub
	log    *observability.Logger
	engine *gin.Engine

	mu       sync.RWMutex
	srv      *http.Server
	listener net.Listener
}

// New builds the routes for p.
func New(cfg Config, p Panel, log *observability.Logger) *Server {
	if log == nil {
		log = observability.Discard()
	}
	s := &Server{
		cfg:   cfg,
		panel: p,
		auth:  NewAuth(cfg.Secret, cfg.PasswordHash),
		hub:   NewHub(p, log),
		log:   log,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowOrigins) > 0 {
		cc.AllowOrigins = s.cfg.AllowOrigins
		cc.AllowCredentials = true
	} else {
		cc.AllowAllOrigins = true
	}
	r.Use(cors.New(cc))

	login := NewLimiter(orDefault(s.cfg.LoginLimit, 10), time.Minute)
	commands := NewLimiter(orDefault(s.cfg.CommandLimit, 600), time.Minute)

	r.GET("/", s.handleViewer)
	r.GET("/health", s.handleHealth)
	r.POST("/api/login", login.Middleware(), s.handleLogin)

	guarded := r.Group("/", s.auth.Require())
	guarded.GET("/ws", func(c *gin.Context) { s.hub.Serve(c.Writer, c.Request) })
	guarded.GET("/api/state", s.handleState)
	guarded.GET("/api/metrics", s.handleMetrics)
	guarded.POST("/api/command", commands.Middleware(), s.handleCommand)
	return r
}

func orDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the viewer socket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("viewer server: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.hub.CloseAll()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.TransportEvent("viewer_listening", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("viewer server: serve: %w", err)
	}
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"viewers":    s.hub.Count(),
		"reconnects": s.panel.Metrics().Counter(observability.CounterReconnects),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	token, err := s.auth.Login(req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleState(c *gin.Context) {
	snap, err := s.panel.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleMetrics(c *gin.Context) {
	m := s.panel.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"counters": m.Snapshot(),
		"latency":  m.Summarize(observability.MetricLatency, time.Time{}),
		"commands": m.SummarizeBy(observability.MetricLatency, "command", time.Time{}),
	})
}

// CommandResult is the /api/command response.
type CommandResult struct {
	Port     int    `json:"port"`
	Token    string `json:"token"`
	Prefix   string `json:"prefix,omitempty"`
	Position int    `json:"position"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	res, err := s.panel.Inject(c.Request.Context(), req.Command)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	out := CommandResult{Port: res.Port, Token: res.Token, Prefix: res.Prefix, Position: res.Position}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	s.log.Info("injected command", "command", res.Token, "role", c.GetString("role"))
	c.JSON(http.StatusOK, out)
}
