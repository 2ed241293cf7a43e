package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingJWTSecret is returned when the signing secret is blank.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

type ctxKey int

const (
	userIDKey ctxKey = iota
	userNameKey
)

// JWTMiddleware validates the Authorization header and attaches the caller's
// user_id and user_name claims to the request context. With a blank secret
// every request is rejected; callers should refuse to start instead, see
// ValidateSecret.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	disabled := ValidateSecret(secret) != nil
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				http.Error(w, "authentication is not configured", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			userID, ok := claimInt64(claims["user_id"])
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			userName, _ := claims["user_name"].(string)

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, userNameKey, userName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidateSecret rejects a blank signing secret.
func ValidateSecret(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// UserID returns the authenticated user id placed by JWTMiddleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func UserName(ctx context.Context) string {
	name, _ := ctx.Value(userNameKey).(string)
	return name
}

// WithUser is used by tests and internal callers that authenticate elsewhere.
func WithUser(ctx context.Context, userID int64, userName string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userNameKey, userName)
}

// JSON numbers decode as float64; string ids are accepted too.
func claimInt64(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
