package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/handlers"
	"returnbox_back_end/internal/metrics"
	"returnbox_back_end/internal/middleware"
)

type Deps struct {
	Handler   *handlers.Handler
	Auth      middleware.Authenticator
	Limiter   *middleware.RateLimiter
	Auditor   *middleware.Auditor
	Origins   []string
	MaxUpload int64
}

// New construit le moteur gin avec tout le stack de middlewares
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = d.MaxUpload
	r.Use(middleware.Recovery(), middleware.RequestLogger(), metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	Register(r, d)
	return r
}

func Register(r *gin.Engine, d Deps) {
	h := d.Handler
	authRequired := middleware.AuthRequired(d.Auth)
	audit := d.Auditor.Audit

	r.GET("/healthz", handlers.Healthz)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api", d.Limiter.API())

	// Authentification
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", d.Limiter.Register(), h.Register)
		authGroup.POST("/login", d.Limiter.Login(), audit(middleware.ActionLogin, middleware.ResourceAuth), h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", authRequired, audit(middleware.ActionLogout, middleware.ResourceAuth), h.Logout)
		authGroup.GET("/me", authRequired, h.Me)
		authGroup.GET("/oauth/:provider", h.BeginOAuth)
		authGroup.GET("/oauth/:provider/callback", h.OAuthCallback)
	}

	// Pages publiques des boutiques
	stores := api.Group("/stores")
	{
		stores.GET("", h.ListStores)
		stores.GET("/:slug", h.GetStore)
		stores.GET("/:slug/refund-estimate", h.Estimate)
		stores.POST("/:slug/returns", d.Limiter.Submit(), middleware.OptionalAuth(d.Auth), h.SubmitReturn)
	}

	// Compte connecté (client ou marchand)
	account := api.Group("", authRequired)
	{
		account.GET("/profile", h.GetProfile)
		account.PUT("/profile", audit(middleware.ActionProfileUpdate, middleware.ResourceProfile), h.UpdateProfile)
		account.GET("/returns/mine", h.MyReturns)
		account.GET("/returns/:id", h.GetReturn)
		account.GET("/returns/:id/photo", h.ReturnPhoto)
		account.GET("/stream", h.Stream)
	}

	// Espace marchand
	merchant := api.Group("/merchant", authRequired, middleware.RequireMerchant())
	{
		merchant.POST("/setup", audit(middleware.ActionStoreSetup, middleware.ResourceProfile), h.SetupStore)

		merchant.GET("/returns", h.ListMerchantReturns)
		merchant.GET("/returns/search", h.SearchReturns)
		merchant.POST("/returns/:id/decision", audit(middleware.ActionReturnDecision, middleware.ResourceReturn), h.Decide)
		merchant.PUT("/returns/:id/notes", audit(middleware.ActionReturnNotes, middleware.ResourceReturn), h.AttachNotes)
		merchant.POST("/returns/:id/pickup", audit(middleware.ActionReturnPickup, middleware.ResourceReturn), h.SchedulePickup)
		merchant.POST("/returns/:id/complete", audit(middleware.ActionReturnComplete, middleware.ResourceReturn), h.Complete)
		merchant.GET("/returns/:id/pickups", h.ListPickups)
		merchant.GET("/pickups/:id/label.png", h.PickupLabel)

		merchant.GET("/policies", h.ListPolicies)
		merchant.PUT("/policies/:condition", audit(middleware.ActionPolicyUpdate, middleware.ResourcePolicy), h.PutPolicy)
		merchant.DELETE("/policies/:condition", audit(middleware.ActionPolicyDelete, middleware.ResourcePolicy), h.DeletePolicy)
	}
}
