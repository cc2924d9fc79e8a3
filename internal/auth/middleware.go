package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

var middlewareTracer = otel.Tracer("auth-middleware")

// Gin context keys
const (
	UserIDKey    = "user_id"
	UsernameKey  = "username"
	UserRolesKey = "user_roles"
	ClaimsKey    = "claims"
)

// Roles carried in tokens
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the token query parameter used by browser WebSocket clients.
func TokenFromRequest(c *gin.Context) string {
	const prefix = "Bearer "
	if header := c.GetHeader("Authorization"); header != "" {
		if len(header) < len(prefix) || !strings.HasPrefix(header, prefix) {
			return ""
		}
		return strings.TrimSpace(header[len(prefix):])
	}
	return c.Query("token")
}

// UserID returns the authenticated user's id set by RequireAuth or OptionalAuth
func UserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UsernameKey, claims.Username)
	c.Set(UserRolesKey, claims.Roles)
	c.Set(ClaimsKey, claims)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: message,
		Code:  models.ErrCodeUnauthorized,
	})
}

// RequireAuth is a Gin middleware that validates JWT tokens
func RequireAuth(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middlewareTracer.Start(c.Request.Context(), "auth.require_auth_gin")
		defer span.End()

		token := TokenFromRequest(c)
		if token == "" {
			span.SetAttributes(attribute.Bool("auth.token_present", false))
			abortUnauthorized(c, "Missing or invalid authorization header")
			return
		}

		span.SetAttributes(attribute.Bool("auth.token_present", true))

		claims, err := jwtManager.ValidateToken(ctx, token)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("auth.token_valid", false))
			log.Printf(`{"level":"warn","message":"Invalid token","error":"%v"}`, err)
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		span.SetAttributes(
			attribute.Bool("auth.token_valid", true),
			attribute.String("user.id", claims.UserID),
			attribute.String("user.username", claims.Username),
		)

		setClaims(c, claims)

		log.Printf(`{"level":"info","message":"User authenticated","user_id":"%s","username":"%s","path":"%s","method":"%s"}`,
			claims.UserID, claims.Username, c.Request.URL.Path, c.Request.Method)

		c.Next()
	}
}

// OptionalAuth is a Gin middleware that validates JWT tokens if present
func OptionalAuth(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middlewareTracer.Start(c.Request.Context(), "auth.optional_auth_gin")
		defer span.End()

		token := TokenFromRequest(c)
		if token == "" {
			span.SetAttributes(attribute.Bool("auth.authenticated", false))
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateToken(ctx, token)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("auth.authenticated", false))
			log.Printf(`{"level":"warn","message":"Invalid optional token","error":"%v"}`, err)
			c.Next()
			return
		}

		span.SetAttributes(
			attribute.Bool("auth.authenticated", true),
			attribute.String("user.id", claims.UserID),
		)

		setClaims(c, claims)
		c.Next()
	}
}

// RequireRole is a Gin middleware that checks if the authenticated user has
// the required role. Must be used after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := middlewareTracer.Start(c.Request.Context(), "auth.require_role")
		defer span.End()

		span.SetAttributes(attribute.String("required.role", role))

		roles := c.GetStringSlice(UserRolesKey)
		for _, userRole := range roles {
			if userRole == role {
				span.SetAttributes(attribute.Bool("auth.role_authorized", true))
				c.Next()
				return
			}
		}

		userID, _ := UserID(c)
		span.SetAttributes(attribute.Bool("auth.role_authorized", false))
		log.Printf(`{"level":"warn","message":"Insufficient permissions","user_id":"%s","required_role":"%s"}`, userID, role)
		c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
			Error: "Insufficient permissions",
			Code:  models.ErrCodeForbidden,
		})
	}
}
