package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds authentication configuration for the localization API.
type AuthConfig struct {
	JWTSecret string
	Enabled   bool
	// PublicPaths skip authentication entirely (health checks, metrics scrape).
	PublicPaths []string
	// PrivilegedPaths require PrivilegedRole to reach (the solve endpoint,
	// which drives a multi-start search across the worker pool).
	PrivilegedPaths []string
	// PrivilegedRole is the role an operator's token must carry to reach a
	// privileged path.
	PrivilegedRole string
	// DefaultMaxCycles is the cycle budget granted to a token that doesn't
	// carry an explicit max_cycles claim.
	DefaultMaxCycles int
}

// Claims is the JWT payload identifying the calling operator and the
// search effort they're entitled to spend on a single solve.
type Claims struct {
	OperatorID   string   `json:"operator_id"`
	OperatorName string   `json:"operator_name"`
	Roles        []string `json:"roles"`
	// MaxCycles caps the multi-start cycle count a solve request issued
	// under this token may run; zero means the middleware fills in
	// AuthConfig.DefaultMaxCycles.
	MaxCycles int `json:"max_cycles,omitempty"`
	jwt.RegisteredClaims
}

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for operator claims in context
	UserContextKey contextKey = "user"
)

// AuthMiddleware creates a JWT authentication middleware that requires
// AuthConfig.PrivilegedRole on paths listed in AuthConfig.PrivilegedPaths and
// fills Claims.MaxCycles from AuthConfig.DefaultMaxCycles when the token
// carries none. It does not cap the cycle count itself; the solve handler
// reads Claims.MaxCycles from the context and clamps the request to it.
func AuthMiddleware(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip authentication if disabled
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			// Check if path is public
			for _, path := range config.PublicPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			// Parse Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSONError(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			// Parse and validate JWT token
			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
				// Validate signing method
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.JWTSecret), nil
			})

			if err != nil {
				writeJSONError(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeJSONError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			// Check if the privileged role is required for this path
			isPrivilegedPath := false
			for _, path := range config.PrivilegedPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					isPrivilegedPath = true
					break
				}
			}

			if isPrivilegedPath && config.PrivilegedRole != "" && !hasRole(claims.Roles, config.PrivilegedRole) {
				writeJSONError(w, fmt.Sprintf("role %q required for %s", config.PrivilegedRole, r.URL.Path), http.StatusForbidden)
				return
			}

			if claims.MaxCycles <= 0 {
				claims.MaxCycles = config.DefaultMaxCycles
			}

			// Add claims to request context
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext retrieves the calling operator's claims from the
// request context, including the cycle budget a solve request may spend.
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// hasRole checks if an operator has a specific role
func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// GenerateToken creates a JWT token for an operator, granting them up to
// maxCycles multi-start cycles per solve request. Intended for issuing
// development and test credentials.
func GenerateToken(operatorID, operatorName string, roles []string, maxCycles int, secret string) (string, error) {
	claims := &Claims{
		OperatorID:   operatorID,
		OperatorName: operatorName,
		Roles:        roles,
		MaxCycles:    maxCycles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "tdoasolve",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"error": "%s", "status": %d}`, message, statusCode)
}
