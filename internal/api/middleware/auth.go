package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/api/problem"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	actorContextKey      contextKey = "actor_id"
	roleContextKey       contextKey = "role"
	systemRoleContextKey contextKey = "system_role"
	traceContextKey      contextKey = "trace_id"
)

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

// authClaims is issued by the upstream identity service. role is the project-scoped
// finance role; system_role is the optional platform role.
type authClaims struct {
	ActorID    string `json:"actor_id"`
	Role       string `json:"role"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

func JWTIssuer() string {
	return jwtIssuer
}

func JWTAudience() string {
	return jwtAudience
}

// AuthMiddleware validates the JWT token and injects the actor and roles into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims := &authClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}
		if !validClaims(claims) {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		}
		role := claims.Role
		if role == "" {
			role = claims.SystemRole
		}
		recordActor(r.Context(), claims.ActorID, role)
		ctx := context.WithValue(r.Context(), actorContextKey, claims.ActorID)
		ctx = context.WithValue(ctx, roleContextKey, claims.Role)
		ctx = context.WithValue(ctx, systemRoleContextKey, claims.SystemRole)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validClaims(c *authClaims) bool {
	if c.ActorID == "" {
		return false
	}
	if c.Subject != "" && c.Subject != c.ActorID {
		return false
	}
	if c.Role == "" && c.SystemRole == "" {
		return false
	}
	if c.Role != "" {
		if _, err := rbac.ParseRole(c.Role); err != nil {
			return false
		}
	}
	if c.SystemRole != "" {
		if _, err := rbac.ParseSystemRole(c.SystemRole); err != nil {
			return false
		}
	}
	return true
}

// ActorIDFromContext returns the authenticated actor ID.
func ActorIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, actorContextKey)
}

// RoleFromContext returns the finance role claim of the authenticated actor.
func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, roleContextKey)
}

// SystemRoleFromContext returns the platform role claim of the authenticated actor.
func SystemRoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, systemRoleContextKey)
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, traceContextKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
