package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bastportal/internal/workflow"
	"bastportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// devSecret signs tokens when JWT_SECRET is unset outside release mode.
const devSecret = "default_super_secret_key"

// JWTSecret returns the configured signing key, or the development fallback.
func JWTSecret(configured string) []byte {
	if configured == "" {
		return []byte(devSecret)
	}
	return []byte(configured)
}

// Claims is the token issued by the identity provider. Subject carries the
// user id.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	VendorID string `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

var (
	errMissingToken = errors.New("authorization is missing")
	errTokenFormat  = errors.New("invalid authorization format, expected 'Bearer <token>'")
	errTokenRole    = errors.New("token carries no portal role")
	errTokenEmail   = errors.New("token carries no email")
)

// ParseToken verifies an HS256 token and returns the actor it names.
func ParseToken(tokenString string, secret []byte) (workflow.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return workflow.Actor{}, err
	}
	if !token.Valid {
		return workflow.Actor{}, jwt.ErrTokenInvalidClaims
	}

	role, ok := workflow.ParseRole(claims.Role)
	if !ok || role == workflow.RoleSystem {
		return workflow.Actor{}, errTokenRole
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return workflow.Actor{}, errTokenEmail
	}
	return workflow.Actor{Email: email, Role: role, VendorID: claims.VendorID}, nil
}

// bearerToken reads the access_token cookie, then the Authorization header.
func bearerToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errTokenFormat
	}
	return parts[1], nil
}

// Auth verifies tokens signed with one secret.
type Auth struct {
	secret []byte
}

func NewAuth(secret []byte) *Auth {
	return &Auth{secret: secret}
}

// RequireRole validates the JWT and stores the actor in the context. With no
// roles any authenticated user passes.
func (a *Auth) RequireRole(allowedRoles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		actor, err := ParseToken(tokenString, a.secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		if len(allowedRoles) > 0 && !roleAllowed(actor.Role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func roleAllowed(role workflow.Role, allowed []workflow.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// ActorFromContext returns the actor stored by RequireRole.
func ActorFromContext(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// Timeout bounds the request context. Services and repositories observe it
// through ctx.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
