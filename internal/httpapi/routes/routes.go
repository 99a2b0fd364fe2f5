// Package routes wires every HTTP handler and middleware into one gin
// engine. Grounded on the teacher's cmd/ares/main.go route-registration
// block (one function wiring controllers to a gin.Engine), split out here
// into its own package so cmd/ only has to call Register.
package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/arenahq/bot-arena/internal/auth"
	_ "github.com/arenahq/bot-arena/internal/httpapi/docs"
	"github.com/arenahq/bot-arena/internal/httpapi/handlers"
	"github.com/arenahq/bot-arena/internal/middleware"
)

// Handlers bundles every constructed handler so Register's signature stays
// stable as the handler set grows.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Bots       *handlers.BotsHandler
	Providers  *handlers.ProvidersHandler
	Wallets    *handlers.WalletsHandler
	Settings   *handlers.SettingsHandler
	Leaderboard *handlers.LeaderboardHandler
	Analytics  *handlers.AnalyticsHandler
	Admin      *handlers.AdminHandler
	WS         *handlers.WSHandler
}

// Register mounts every route group behind the rate limiter, and every
// authenticated group behind RequireAuth. Admin routes additionally require
// RequireAdmin (§7 invariant 1).
func Register(engine *gin.Engine, issuer *auth.Issuer, h *Handlers) {
	engine.Use(middleware.RateLimiter(20, 40))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group("/api")

	public := api.Group("")
	h.WS.RegisterRoutes(public)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(issuer))

	admin := api.Group("")
	admin.Use(middleware.RequireAuth(issuer), middleware.RequireAdmin())

	h.Auth.RegisterRoutes(public, authed)
	h.Bots.RegisterRoutes(authed)
	h.Providers.RegisterRoutes(authed)
	h.Wallets.RegisterRoutes(authed)
	h.Settings.RegisterRoutes(authed, admin)
	h.Leaderboard.RegisterRoutes(public, admin)
	h.Analytics.RegisterRoutes(authed)
	h.Admin.RegisterRoutes(admin)
}
