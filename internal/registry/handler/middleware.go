package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// claimsKey is the gin context key holding the verified session claims.
const claimsKey = "bridge_claims"

// RequireRole returns a middleware that admits only bearer tokens carrying
// one of the allowed roles. admin always passes.
func RequireRole(tokens *auth.TokenIssuer, allowed ...model.InstitutionRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
				"kind":  "UNAUTHORIZED",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
				"kind":  "UNAUTHORIZED",
			})
			return
		}

		if !roleAllowed(claims.Role, allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "role " + string(claims.Role) + " may not perform this operation",
				"kind":  "ACCESS_DENIED",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func roleAllowed(role model.InstitutionRole, allowed []model.InstitutionRole) bool {
	if role == model.RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// ClaimsFromCtx returns the verified claims set by RequireRole, or nil.
func ClaimsFromCtx(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// actorFromCtx derives the audit-trail actor string from the session
// claims, mirroring the msp:role identity format the chaincode uses.
func actorFromCtx(c *gin.Context) string {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		return "anonymous"
	}
	return claims.Code + ":" + string(claims.Role)
}
