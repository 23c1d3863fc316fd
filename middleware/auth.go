package middleware

import (
	"fmt"
	"strings"

	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const (
	// OrgIDKey holds the caller's organization id (uint) on the gin context.
	OrgIDKey = "org_id"
	// RoleKey holds the caller's role claim.
	RoleKey = "role"
)

// AuthMiddleware accepts HS256 bearer tokens carrying an org_id claim and
// scopes the request to that organization.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.LogDebug("AuthMiddleware called for %s", c.Request.URL.Path)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.LogError("Missing bearer token on %s", c.Request.URL.Path)
			utils.Unauthorized(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			utils.LogError("Invalid token: %v", err)
			utils.Unauthorized(c, utils.ErrInvalidToken)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			utils.LogError("Invalid token claims")
			utils.Unauthorized(c, utils.ErrInvalidToken)
			c.Abort()
			return
		}

		orgID, ok := claims["org_id"].(float64)
		if !ok || orgID < 1 {
			utils.LogError("Token without org_id claim")
			utils.Unauthorized(c, "Token is not scoped to an organization")
			c.Abort()
			return
		}
		role, _ := claims["role"].(string)

		c.Set(OrgIDKey, uint(orgID))
		c.Set(RoleKey, role)
		utils.LogDebug("Request authenticated for org %d", uint(orgID))
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != "admin" {
			utils.LogError("Non-admin caller for org %d attempted admin access", c.GetUint(OrgIDKey))
			utils.Error(c, 403, "Admin access required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OrgID returns the organization the request is scoped to.
func OrgID(c *gin.Context) uint {
	return c.GetUint(OrgIDKey)
}
