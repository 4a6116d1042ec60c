package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// Keys under which the auth middleware stores identity in the gin context.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// bearerToken pulls the raw token out of an "Authorization: Bearer x" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// JWTMiddleware authenticates requests with a Bearer access token. It rejects
// refresh tokens on access routes, then stores the caller's uuid.UUID and role
// string under CtxUserID/CtxRole for downstream handlers.
func JWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, domain.ErrUnauthorized.Error())
			return
		}

		claims, err := authSvc.ParseAccessToken(token)
		if err != nil {
			abortUnauthorized(c, domain.ErrTokenInvalid.Error())
			return
		}
		if claims.TokenType != "access" {
			abortUnauthorized(c, "token type must be access")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortUnauthorized(c, domain.ErrTokenInvalid.Error())
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// RoleMiddleware restricts a route to the given roles. It assumes
// JWTMiddleware already ran on the chain.
func RoleMiddleware(roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[domain.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[domain.UserRole(GetRole(c))] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": domain.ErrForbidden.Error(),
			})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated caller's id, uuid.Nil when the request
// never passed through JWTMiddleware.
func GetUserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}

// GetRole returns the authenticated caller's role string, "" when absent.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
