package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("jwt-manager")

const issuer = "flash-agent-orchestrator"

// JWTManager manages JWT token creation and validation
type JWTManager struct {
	signingKey string
	algorithm  string
	keyID      string
	tracer     trace.Tracer
}

// Claims represents JWT claims for the orchestrator API
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a JWT manager signing with the given secret
func NewJWTManager(signingKey string) (*JWTManager, error) {
	if signingKey == "" {
		return nil, errors.New("jwt signing key is required")
	}

	return &JWTManager{
		signingKey: signingKey,
		algorithm:  "HS256",
		keyID:      "default",
		tracer:     tracer,
	}, nil
}

// GenerateToken generates a new JWT token
func (jm *JWTManager) GenerateToken(ctx context.Context, userID, username, email string, roles []string, duration time.Duration) (string, time.Time, error) {
	_, span := jm.tracer.Start(ctx, "jwt.generate_token")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("user.username", username),
	)

	now := time.Now()
	expiresAt := now.Add(duration)
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Email:    email,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
			ID:        fmt.Sprintf("jwt-%d", now.UnixNano()), // JTI for revocation
		},
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(jm.algorithm), claims)

	// Set key ID header for key rotation support
	token.Header["kid"] = jm.keyID

	tokenString, err := token.SignedString([]byte(jm.signingKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	span.SetAttributes(
		attribute.String("jwt.id", claims.ID),
		attribute.String("jwt.expires_at", claims.ExpiresAt.String()),
	)

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token
func (jm *JWTManager) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	_, span := jm.tracer.Start(ctx, "jwt.validate_token")
	defer span.End()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jm.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		if kid, ok := token.Header["kid"].(string); ok && kid != jm.keyID {
			// Key ID mismatch - might indicate key rotation
			span.SetAttributes(attribute.String("jwt.kid_mismatch", kid))
		}

		return []byte(jm.signingKey), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	span.SetAttributes(
		attribute.String("user.id", claims.UserID),
		attribute.String("jwt.id", claims.ID),
	)

	return claims, nil
}

// RefreshToken generates a new token from an existing valid token
func (jm *JWTManager) RefreshToken(ctx context.Context, tokenString string, duration time.Duration) (string, time.Time, error) {
	ctx, span := jm.tracer.Start(ctx, "jwt.refresh_token")
	defer span.End()

	claims, err := jm.ValidateToken(ctx, tokenString)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("cannot refresh invalid token: %w", err)
	}

	return jm.GenerateToken(ctx, claims.UserID, claims.Username, claims.Email, claims.Roles, duration)
}
