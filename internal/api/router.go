// Package api wires the public HTTP surface: auth, rounds, bets, wallet and
// the WebSocket feed.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/api/handler"
	"github.com/taasclub/cardbet/internal/api/middleware"
	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/service"
	"github.com/taasclub/cardbet/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc   *service.AuthService
	GameSvc   *service.GameService
	BetSvc    *service.BetService
	ClaimSvc  *service.ClaimService
	WalletSvc *service.WalletService
	UserRepo  *repository.UserRepository
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(deps.Cfg))
	r.Use(middleware.TimeoutMiddleware(deps.Cfg.Server.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	userH := handler.NewUserHandler(deps.AuthSvc, deps.UserRepo)
	gameH := handler.NewGameHandler(deps.GameSvc)
	betH := handler.NewBetHandler(deps.BetSvc, deps.ClaimSvc)
	walletH := handler.NewWalletHandler(deps.WalletSvc)

	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints
	betRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for bet endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Rounds (public) ──────────────────────────────────────────────────
		games := api.Group("/games")
		{
			games.GET("/current", gameH.GetCurrent)
			games.GET("/previous", gameH.GetPrevious)
			games.GET("/:id", gameH.GetByID)
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			authed.GET("/me", userH.Me)

			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.POST("", betH.PlaceBet)
				bets.GET("/my", betH.GetMyBets)
				bets.GET("/:identifier", betH.GetSlip)
				bets.POST("/:identifier/claim", betH.Claim)
				bets.POST("/:identifier/cancel", betH.Cancel)
			}

			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", walletH.GetBalance)
				wallet.GET("/summary", walletH.GetSummary)
				wallet.GET("/transactions", walletH.GetTransactions)
			}
		}
	}

	// ── WebSocket ────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://taasclub.in":     true,
				"https://www.taasclub.in": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Idempotency-Key, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
