package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vahub-messaging/internal/domain"
	"vahub-messaging/internal/transport/httpdto"
	"vahub-messaging/pkg/logger"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

// Claims is the access-token payload issued by the marketplace's
// identity service. This service only verifies; it never issues.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken verifies an access token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ExtractToken pulls the bearer token from the Authorization header or
// the token query parameter (websocket clients cannot set headers).
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

// AuthMiddleware rejects unauthenticated requests and stores the
// caller's identity on the gin context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing token", "UNAUTHENTICATED"))
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid token", "UNAUTHENTICATED"))
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid user id", "UNAUTHENTICATED"))
			return
		}
		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid role", "UNAUTHENTICATED"))
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		// the request log correlates entries by these context keys
		ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminOnly gates a route group to admin callers. Must run after
// AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFrom(c)
		if !ok || role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, httpdto.NewErrorResponse("admin access required", "ADMIN_ONLY"))
			return
		}
		c.Next()
	}
}

// UserIDFrom reads the authenticated user id set by AuthMiddleware.
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RoleFrom reads the authenticated role set by AuthMiddleware.
func RoleFrom(c *gin.Context) (domain.Role, bool) {
	v, ok := c.Get(ContextRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(domain.Role)
	return role, ok
}
