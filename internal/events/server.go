package events

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"stakeoption/internal/logger"
	"stakeoption/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrMissingToken = errors.New("missing token")

type PriceReader interface {
	GetTick(ctx context.Context, symbol string) (*models.PriceTick, error)
}

// TokenParser resolves an access token to its user.
type TokenParser func(token string) (uuid.UUID, error)

type ServerConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// DefaultServerConfig pings every 30s and drops clients silent for 60s.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   256,
		MessageRate:  20,
		MessageBurst: 40,
	}
}

// Server upgrades HTTP requests to websocket clients.
type Server struct {
	registry   *Registry
	prices     PriceReader
	parseToken TokenParser
	cfg        ServerConfig
	upgrader   websocket.Upgrader
	log        *zap.Logger
	metrics    MetricsCollector
	now        func() time.Time
}

func NewServer(registry *Registry, prices PriceReader, parseToken TokenParser, cfg ServerConfig, log *zap.Logger, metrics MetricsCollector) *Server {
	def := DefaultServerConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = def.MessageRate
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = def.MessageBurst
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	s := &Server{
		registry:   registry,
		prices:     prices,
		parseToken: parseToken,
		cfg:        cfg,
		log:        logger.OrNop(log).Named("ws"),
		metrics:    metrics,
		now:        time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// authenticate returns uuid.Nil for anonymous connections. A token that is
// present but invalid is rejected outright.
func (s *Server) authenticate(r *http.Request) (uuid.UUID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return uuid.Nil, nil
	}
	if s.parseToken == nil {
		return uuid.Nil, ErrMissingToken
	}
	return s.parseToken(token)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(s, conn, userID)
	s.registry.Register(c, userID)
	s.metrics.RecordConnection(1)
	s.log.Debug("client connected",
		zap.String("client_id", c.id),
		zap.Bool("authenticated", userID != uuid.Nil),
	)

	go c.writePump()
	go c.readPump()
}
