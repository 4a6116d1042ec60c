package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/backoffice/handler"
	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc       *service.AuthService
	GameSvc       *service.GameService
	SettlementSvc *service.SettlementService
	BetSvc        *service.BetService
	WalletSvc     *service.WalletService
	SettingsSvc   *service.SettingsService
	UserRepo      *repository.UserRepository
	Cfg           *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine served on the
// backoffice port.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	gameH := handler.NewGameAdminHandler(deps.GameSvc, deps.SettlementSvc, deps.BetSvc)
	settingsH := handler.NewSettingsHandler(deps.SettingsSvc)
	userH := handler.NewUserAdminHandler(deps.UserRepo, deps.WalletSvc)

	admin := r.Group("/admin")
	admin.Use(adminJWTMiddleware(deps.AuthSvc))
	{
		// Rounds
		g := admin.Group("/games")
		{
			g.GET("", gameH.List)
			g.GET("/:id", gameH.Detail)
			g.GET("/:id/settlement-preview", gameH.Preview)
			g.GET("/:id/slips", gameH.Slips)
			g.POST("/:id/settle", requireSettleRole(), gameH.Settle)
		}

		// Settings
		s := admin.Group("/settings")
		{
			s.GET("", settingsH.List)
			s.PATCH("/:key", requireRole(domain.RoleAdmin, domain.RoleOps), settingsH.Update)
		}

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", requireRole(domain.RoleAdmin, domain.RoleOps), userH.SetActive(false))
			u.POST("/:id/activate", requireRole(domain.RoleAdmin, domain.RoleOps), userH.SetActive(true))
			u.POST("/:id/role", requireRole(domain.RoleAdmin), userH.SetRole)
			u.POST("/:id/deposit", requireRole(domain.RoleAdmin, domain.RoleFinance), userH.Deposit)
			u.POST("/:id/withdraw", requireRole(domain.RoleAdmin, domain.RoleFinance), userH.Withdraw)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to hold a
// backoffice-capable role.
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if !domain.UserRole(claims.Role).CanAccessBackoffice() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// requireRole gates a route to the given roles. Runs after adminJWTMiddleware.
func requireRole(roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[domain.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[domain.UserRole(c.GetString("role"))] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// requireSettleRole gates manual settlement to roles with settle rights.
func requireSettleRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.UserRole(c.GetString("role")).CanSettle() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
