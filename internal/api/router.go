package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parkstand-backend/internal/auth"
	"parkstand-backend/internal/mw"
)

// RouterConfig carries the knobs the router needs from the config file.
type RouterConfig struct {
	JWTSecret       string
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Response cache for the daily listing only; the active set and
	// searches must always reflect the latest checkout.
	cacheStore := cache.New(cfg.CacheTTL, 10*cfg.CacheTTL)
	todayCache := mw.Cache(cacheStore, cfg.CacheTTL, func(c *gin.Context) string {
		return fmt.Sprintf("today:%d", auth.StandID(c))
	})

	api := r.Group("/api")
	api.Use(rateLimiter, auth.Middleware(cfg.JWTSecret))
	{
		api.POST("/sessions", handler.PostCheckIn)
		api.POST("/sessions/checkout", handler.PostCheckOut)
		api.POST("/sessions/:id/checkout", handler.PostCheckOutByID)
		api.POST("/sessions/:id/cancel", handler.PostCancel)

		api.GET("/sessions/today", todayCache, handler.GetToday)
		api.GET("/sessions/active", handler.GetActive)
		api.GET("/sessions/token/:token", handler.GetByToken)
		api.GET("/sessions/search", handler.GetSearch)
	}

	return r
}
