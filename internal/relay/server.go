package relay

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/httpx"
)

// TokenParser validates a bearer credential.
type TokenParser interface {
	Parse(raw string) (identity.Actor, error)
}

// ServerConfig tunes the WebSocket endpoint.
type ServerConfig struct {
	AllowedOrigins []string
	SendBuffer     int
}

// Server exposes the relay over HTTP.
type Server struct {
	hub        *Hub
	tokens     TokenParser
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
	startedAt  time.Time
	now        func() time.Time
}

// NewServer builds a Server around a running hub.
func NewServer(hub *Hub, tokens TokenParser, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:        hub,
		tokens:     tokens,
		logger:     logger,
		sendBuffer: cfg.SendBuffer,
		now:        time.Now,
	}
	s.startedAt = s.now()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return s
}

// Routes returns the relay router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/connections", s.handleConnections)
	r.Get("/ws", s.handleWS)
	return r
}

type healthResponse struct {
	Status      string  `json:"status"`
	Connections int     `json:"connections"`
	Uptime      float64 `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Connections: s.hub.Count(),
		Uptime:      s.now().Sub(s.startedAt).Seconds(),
	})
}

type connectionsResponse struct {
	Total       int          `json:"total"`
	Connections []Connection `json:"connections"`
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.authenticate(w, auth.BearerToken(r.Header.Get("Authorization")))
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
		return
	}
	conns, err := s.hub.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("relay: snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, connectionsResponse{Total: len(conns), Connections: conns})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw := auth.BearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	actor, ok := s.authenticate(w, raw)
	if !ok {
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("relay: upgrade", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		return
	}
	c := &conn{
		hub:    s.hub,
		ws:     ws,
		client: newClient(actor, s.sendBuffer, s.now().UTC()),
		logger: s.logger,
	}
	if !s.hub.attachClient(c.client) {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
		_ = ws.Close()
		return
	}
	s.logger.Info("relay: connected",
		slog.Int64("user_id", actor.ID),
		slog.String("role", actor.Role.String()))
	go c.writePump()
	c.readPump()
	s.logger.Info("relay: disconnected", slog.Int64("user_id", actor.ID))
}

func (s *Server) authenticate(w http.ResponseWriter, raw string) (identity.Actor, bool) {
	if raw == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication token required")
		return identity.Actor{}, false
	}
	actor, err := s.tokens.Parse(raw)
	if err != nil {
		s.logger.Debug("relay: token rejected", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
		return identity.Actor{}, false
	}
	return actor, true
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
