package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"minimarket-copilot/internal/apperr"
	"minimarket-copilot/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIDKey contextKey = "user_id"

// userIDFromContext returns the authenticated user set by RequireUser.
func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(userIDKey).(uuid.UUID)
	return v, ok
}

// authenticator resolves the calling user. With a secret it requires an HS256
// bearer token whose subject is the user id; without one it trusts X-User-ID,
// which assumes a gateway in front of the service.
type authenticator struct {
	secret []byte
	issuer string
}

func (a authenticator) userID(r *http.Request) (uuid.UUID, error) {
	if len(a.secret) == 0 {
		raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if raw == "" {
			return uuid.Nil, errors.New("missing X-User-ID header")
		}
		return uuid.Parse(raw)
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return uuid.Nil, errors.New("missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}

// RequireUser rejects requests without a valid caller identity with 401.
func RequireUser(secret, issuer string, log *logger.Logger) func(http.Handler) http.Handler {
	auth := authenticator{secret: []byte(secret), issuer: issuer}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.userID(r)
			if err != nil || userID == uuid.Nil {
				log.Warn(log.WithField(r.Context(), "reason", fmt.Sprint(err)), "unauthenticated request")
				writeError(w, r, "authentication required", string(apperr.CodeUnauthorized), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = log.WithUserID(ctx, userID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
