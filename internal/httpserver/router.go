package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"skillswap/internal/handler"
	"skillswap/pkg/rbac"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker reports whether the queue publisher still holds its connection.
type Broker interface {
	IsConnected() bool
}

// Deps are the handlers and collaborators the router mounts.
type Deps struct {
	Offers         *handler.OfferHandler
	Projects       *handler.ProjectHandler
	Chat           *handler.ChatHandler
	Admin          *handler.AdminHandler
	WS             *handler.WSHandler
	Users          UserLookup
	Limiter        *RateLimiter
	DB             Pinger
	Queue          Broker
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(d.Logger), MetricsMiddleware())
	r.Use(corsMiddleware(d.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
			return
		}
		if d.Queue != nil && !d.Queue.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "queue_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/")
	auth.Use(AuthMiddleware(d.JWTSecret))

	auth.GET("/ws", d.WS.Connect)

	api := auth.Group("/")
	api.Use(d.Limiter.Middleware())

	// Money path: creating and accepting terms is closed to banned users.
	negotiate := api.Group("/")
	negotiate.Use(RequirePermission(rbac.PermissionNegotiate), BanGate(d.Users, d.Logger))
	{
		negotiate.POST("/posts/:postId/offers", d.Offers.MakeOffer)
		negotiate.POST("/offers/:offerId/counter", d.Offers.CounterOffer)
		negotiate.POST("/offers/:offerId/accept", d.Offers.AcceptOffer)
		negotiate.POST("/counter-offers/:counterOfferId/accept", d.Offers.AcceptCounterOffer)
	}

	offers := api.Group("/")
	offers.Use(RequirePermission(rbac.PermissionNegotiate))
	{
		offers.GET("/offers", d.Offers.MyOffers)
		offers.GET("/offers/:offerId", d.Offers.MyOffer)
		offers.PATCH("/offers/:offerId", d.Offers.UpdateSentOffer)
		offers.POST("/offers/:offerId/reject", d.Offers.RejectOffer)

		offers.GET("/counter-offers", d.Offers.MyCounterOffers)
		offers.GET("/counter-offers/:counterOfferId", d.Offers.MyCounterOffer)
		offers.PATCH("/counter-offers/:counterOfferId", d.Offers.UpdateSentCounterOffer)
		offers.DELETE("/counter-offers/:counterOfferId", d.Offers.WithdrawCounterOffer)
		offers.POST("/counter-offers/:counterOfferId/reject", d.Offers.RejectCounterOffer)
		offers.GET("/sent-counter-offers", d.Offers.MySentCounterOffers)
		offers.GET("/sent-counter-offers/:counterOfferId", d.Offers.MySentCounterOffer)
	}

	chat := api.Group("/")
	chat.Use(RequirePermission(rbac.PermissionChat))
	{
		chat.POST("/offers/:offerId/messages", d.Chat.SendMessage)
		chat.GET("/offers/:offerId/messages", d.Chat.History)
	}

	projects := api.Group("/projects")
	projects.Use(RequirePermission(rbac.PermissionSubmitProject))
	{
		projects.GET("", d.Projects.MyProjects)
		projects.GET("/:projectId", d.Projects.MyProject)
		projects.POST("/:projectId/link", d.Projects.SubmitLink)
	}

	admin := auth.Group("/admin")
	{
		counters := admin.Group("/counter-offers")
		counters.Use(RequirePermission(rbac.PermissionAdminCounterOffer))
		counters.GET("", d.Admin.ListCounterOffers)
		counters.GET("/:counterOfferId", d.Admin.GetCounterOffer)
		counters.PATCH("/:counterOfferId", d.Admin.UpdateCounterOffer)
		counters.DELETE("/:counterOfferId", d.Admin.DeleteCounterOffer)

		admin.POST("/outbox/replay", RequirePermission(rbac.PermissionReplayOutbox), d.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", RequirePermission(rbac.PermissionReplayOutbox), d.Admin.ReplayFailedEvents)
		admin.POST("/projects/:projectId/penalties/:userId", RequirePermission(rbac.PermissionApplyPenalty), d.Admin.ApplyPenalty)
	}

	return &Router{Engine: r}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", traceHeader},
		ExposeHeaders:    []string{"Content-Length", traceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
