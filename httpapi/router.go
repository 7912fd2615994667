// Package httpapi is the admin HTTP surface: a gin-gonic router exposing
// snapshot/override/restore/metadata endpoints plus a websocket
// subscription feed — gin.New() + gin.Recovery(), a structured request
// logger, a CORS middleware, and a bearer-token auth middleware guarding
// everything but health and login.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/getnfig/nfig/pubsub"
	"github.com/getnfig/nfig/store"
)

// shouldLogRequest skips the request logger for two endpoints: the
// websocket feed logs its own connect/disconnect events and /health is
// polled constantly, so logging either would just add noise.
func shouldLogRequest(c *gin.Context) bool {
	if c.Request.URL.Path == "/health" {
		return false
	}
	const suffix = "/ws"
	p := c.Request.URL.Path
	return len(p) < len(suffix) || p[len(p)-len(suffix):] != suffix
}

// Options configures New.
type Options struct {
	// AdminSecret signs and verifies bearer tokens. Required.
	AdminSecret []byte
	// AdminUser/AdminPassword gate POST /auth/token — one shared admin
	// credential, since nfig's admin surface has exactly one role.
	AdminUser     string
	AdminPassword string
	TokenTTL      time.Duration
	// AllowedOrigins is passed to gin-contrib/cors; empty allows all
	// origins (suitable for a same-host admin UI only).
	AllowedOrigins []string
	Logger         *slog.Logger
}

type handlers struct {
	store   *store.Store
	pubsub  *pubsub.Manager
	opts    Options
}

// New builds the admin HTTP router over s, broadcasting commit changes
// through mgr's websocket hubs.
func New(s *store.Store, mgr *pubsub.Manager, opts Options) *gin.Engine {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sloggin.NewWithConfig(opts.Logger, sloggin.Config{
		Filters: []sloggin.Filter{shouldLogRequest},
	}))

	corsCfg := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := &handlers{store: s, pubsub: mgr, opts: opts}
	router.POST("/auth/token", h.login)

	api := router.Group("/api")
	api.Use(requireAuth(opts.AdminSecret))

	api.GET("/apps", h.listApps)

	appGroup := api.Group("/apps/:app")
	appGroup.GET("/snapshot", h.getSnapshot)
	appGroup.GET("/commit", h.getCommit)
	appGroup.GET("/subapps", h.getSubApps)
	appGroup.GET("/metadata", h.getMetadata)
	appGroup.POST("/overrides", h.setOverride)
	appGroup.DELETE("/overrides", h.clearOverride)
	appGroup.POST("/restore", h.restoreSnapshot)
	appGroup.GET("/ws", h.subscribeWS)

	return router
}

type loginRequest struct {
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.User != h.opts.AdminUser || req.Password != h.opts.AdminPassword {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	token, err := issueToken(h.opts.AdminSecret, req.User, h.opts.TokenTTL)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": int(h.opts.TokenTTL.Seconds())})
}
