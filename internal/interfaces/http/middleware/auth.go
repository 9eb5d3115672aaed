// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextRole      = "role"
	ContextTenantID  = "tenant_id"
	ContextClaims    = "token_claims"
)

// SessionHeader carries the guest session id used for anonymous carts
const SessionHeader = "X-Session-ID"

// AuthMiddleware creates JWT authentication middleware
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(cfg)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondError(c, apperrors.New(apperrors.CodeUnauthorized, "authorization header required"))
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			RespondError(c, apperrors.New(apperrors.CodeUnauthorized, "invalid authorization header format"))
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			RespondError(c, apperrors.New(apperrors.CodeUnauthorized, "invalid or expired token"))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware provides optional authentication.
// A missing or invalid token leaves the request anonymous.
func OptionalAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	jwtManager := auth.NewJWTManager(cfg)

	return func(c *gin.Context) {
		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.Next()
			return
		}

		if claims, err := jwtManager.ValidateAccessToken(tokenString); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// AdminMiddleware ensures the user is an admin
func AdminMiddleware() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}

// VendorMiddleware ensures the user is a vendor bound to a tenant, or an admin
func VendorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			RespondError(c, apperrors.New(apperrors.CodeUnauthorized, "authentication required"))
			return
		}
		if claims.IsAdmin() {
			c.Next()
			return
		}
		if claims.Role != auth.RoleVendor || claims.TenantID == nil {
			RespondError(c, apperrors.New(apperrors.CodeForbidden, "vendor access required"))
			return
		}
		c.Next()
	}
}

// RequireRole ensures the user holds one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			RespondError(c, apperrors.New(apperrors.CodeUnauthorized, "authentication required"))
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		RespondError(c, apperrors.Newf(apperrors.CodeForbidden, "%s access required", roles[0]))
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserEmail, claims.Email)
	c.Set(ContextRole, claims.Role)
	if claims.TenantID != nil {
		c.Set(ContextTenantID, *claims.TenantID)
	}
	c.Set(ContextClaims, claims)
}

// ClaimsFromContext returns the validated token claims
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// GetUserIDFromContext extracts user ID from gin context
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserEmailFromContext extracts user email from gin context
func GetUserEmailFromContext(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextUserEmail)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok
}

// IsAdminFromContext checks if user is admin from gin context
func IsAdminFromContext(c *gin.Context) bool {
	return c.GetString(ContextRole) == auth.RoleAdmin
}

// TenantIDFromContext returns the vendor's tenant. Admins get nil, meaning unscoped.
func TenantIDFromContext(c *gin.Context) *uint {
	if IsAdminFromContext(c) {
		return nil
	}
	v, exists := c.Get(ContextTenantID)
	if !exists {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}

// SessionIDFromContext returns the guest session id header
func SessionIDFromContext(c *gin.Context) string {
	return c.GetHeader(SessionHeader)
}
