// Package api wires the HTTP surface: middleware, docs, metrics and routes.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/friendlyvoice/config"
	_ "github.com/d60-Lab/friendlyvoice/docs"
	"github.com/d60-Lab/friendlyvoice/internal/api/handler"
	"github.com/d60-Lab/friendlyvoice/internal/api/middleware"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/internal/session"
)

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	Handler  *handler.Handler
	Sessions *session.Manager
	Images   *media.HostPolicy
	Registry *prometheus.Registry
}

// NewRouter 组装 gin 引擎
func NewRouter(d Deps) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := d.Images.Register(v); err != nil {
			return nil, fmt.Errorf("register %s validator: %w", media.ImageHostTag, err)
		}
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	if d.Config.Telemetry.Enabled {
		r.Use(otelgin.Middleware(d.Config.Telemetry.ServiceName))
	}

	metrics := middleware.NewMetrics(d.Registry)
	middleware.Gauge(d.Registry, "friendlyvoice_sessions_active", "Number of open sessions",
		func() float64 { return float64(d.Sessions.Len()) })
	r.Use(metrics.Handler())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/api/v1/recordings"})))
	if d.Config.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(d.Config.RateLimit).Handler())
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := d.Handler
	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/verify-email", h.VerifyEmail)
	}

	secured := v1.Group("", middleware.RequireSession(d.Sessions))
	{
		secured.POST("/auth/logout", h.Logout)
		secured.POST("/auth/refresh", h.Refresh)

		secured.GET("/session", h.GetSession)
		secured.PUT("/session/view", h.SetView)

		secured.GET("/me", h.Me)
		secured.PATCH("/me", h.UpdateProfile)
		secured.PUT("/me/avatar", h.UpdateAvatar)
		secured.POST("/me/onboarding", h.CompleteOnboarding)

		secured.GET("/users/:user_id", h.GetUser)
		secured.GET("/users/:user_id/voces", h.UserVoces)

		secured.GET("/relations/mutual", h.Mutual)
		secured.POST("/relations/:user_id/follow", h.Follow)
		secured.DELETE("/relations/:user_id/follow", h.Unfollow)
		secured.GET("/relations/:user_id/status", h.FollowStatus)
		secured.GET("/relations/:user_id/following", h.ListFollowing)
		secured.GET("/relations/:user_id/followers", h.ListFollowers)

		secured.GET("/messages", h.Conversations)
		secured.GET("/messages/:user_id", h.Thread)
		secured.POST("/messages/:user_id", h.SendMessage)

		secured.GET("/feed", h.Feed)
		secured.POST("/voces", h.Publish)
		secured.GET("/voces/:voz_id", h.GetVoz)
		secured.POST("/voces/:voz_id/like", h.ToggleLike)
		secured.GET("/voces/:voz_id/comments", h.Comments)
		secured.POST("/voces/:voz_id/comments", h.AddComment)

		secured.POST("/recordings", h.UploadRecording)

		secured.GET("/ecosystems", h.Ecosystems)
		secured.GET("/ecosystems/:id", h.GetEcosystem)
	}

	return r, nil
}
