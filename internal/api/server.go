package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bitget-trader/internal/market"
	"bitget-trader/internal/order"
	"bitget-trader/pkg/db"
)

// Server exposes read-only status endpoints for monitoring the bot. It
// never mutates trading state.
type Server struct {
	Router   *gin.Engine
	Cache    *market.Cache
	Executor *order.Executor
	DB       *db.Database
	Meta     SystemMeta
}

// SystemMeta describes runtime status exposed on /api/status.
type SystemMeta struct {
	Symbol           string
	ExecutionEnabled bool
	Version          string
	StartedAt        time.Time
}

func NewServer(cache *market.Cache, ex *order.Executor, database *db.Database, meta SystemMeta) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Router:   r,
		Cache:    cache,
		Executor: ex,
		DB:       database,
		Meta:     meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/candles", s.getCandles)
		api.GET("/position", s.getPosition)
		api.GET("/indicators", s.getIndicators)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symbol":            s.Meta.Symbol,
		"execution_enabled": s.Meta.ExecutionEnabled,
		"version":           s.Meta.Version,
		"uptime_seconds":    int(time.Since(s.Meta.StartedAt).Seconds()),
		"cached_candles":    s.Cache.Len(),
		"pending_orders":    s.Executor.PendingCount(),
	})
}

func (s *Server) getCandles(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > market.DefaultMaxCandles {
		limit = market.DefaultMaxCandles
	}
	c.JSON(http.StatusOK, gin.H{"candles": s.Cache.Recent(limit)})
}

func (s *Server) getPosition(c *gin.Context) {
	pos := s.Executor.Position(s.Meta.Symbol)
	if pos == nil {
		c.JSON(http.StatusOK, gin.H{"in_position": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"in_position":       true,
		"symbol":            pos.Symbol,
		"side":              pos.Side,
		"size":              pos.Size,
		"entry_price":       pos.EntryPrice,
		"stop_loss_price":   pos.StopLossPrice,
		"take_profit_price": pos.TakeProfitPrice,
		"leverage":          pos.Leverage,
		"break_even_price":  pos.BreakEvenPrice,
	})
}

func (s *Server) getIndicators(c *gin.Context) {
	snap, ok := s.Cache.Snapshot(market.DefaultMaxCandles)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not enough candles yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ema7":         snap.EMA7,
		"ema25":        snap.EMA25,
		"ema200":       snap.EMA200,
		"price_change": snap.PriceChange,
		"stoch_k":      snap.StochK,
		"stoch_d":      snap.StochD,
		"last_close":   snap.LastClose,
		"last_volume":  snap.LastVolume,
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
