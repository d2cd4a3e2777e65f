package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils/response"
)

type identityContextKey string

const identityKey = identityContextKey("cart_identity")

// SessionMiddleware resolves the cart identity exactly once per request:
// an authenticated user via bearer JWT, else a guest via the session
// cookie. The resolved identity is immutable for the request's duration.
type SessionMiddleware struct {
	jwtKey     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewSessionMiddleware(jwtKey []byte, cookieName string, ttl time.Duration, secure bool) *SessionMiddleware {
	return &SessionMiddleware{
		jwtKey:     jwtKey,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Resolve attaches the request's CartIdentity to the context. A present but
// invalid bearer token is rejected; an absent one falls back to the guest
// cookie. No cookie is issued here — that happens on the first cart
// mutation via EnsureIdentity.
func (m *SessionMiddleware) Resolve(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		identity := models.CartIdentity{}

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			claims, err := m.parseToken(authHeader)
			if err != nil {
				logger.Warn("Rejected invalid bearer token", slog.String("error", err.Error()))
				response.Error(w, errors.UnauthorizedError("Invalid or expired token"))

				return
			}

			identity.UserID = &claims.UserID
		} else if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			identity.SessionToken = cookie.Value
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireUser gates routes that only make sense for authenticated users.
func (m *SessionMiddleware) RequireUser(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())

		if identity.UserID == nil {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		next.ServeHTTP(w, r)
	}
}

func (m *SessionMiddleware) parseToken(authHeader string) (*models.Claims, error) {
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return nil, jwt.ErrTokenMalformed
	}

	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}

		return m.jwtKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// EnsureIdentity returns the request identity, minting a guest session
// token and setting its cookie when the request carries none. Cart
// mutation handlers call this so a first-time guest gets a cart.
func (m *SessionMiddleware) EnsureIdentity(w http.ResponseWriter, r *http.Request) models.CartIdentity {
	identity := IdentityFromContext(r.Context())

	if !identity.IsZero() {
		return identity
	}

	identity.SessionToken = uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    identity.SessionToken,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return identity
}

func IdentityFromContext(ctx context.Context) models.CartIdentity {
	if identity, ok := ctx.Value(identityKey).(models.CartIdentity); ok {
		return identity
	}

	return models.CartIdentity{}
}

// WithIdentity is a test helper hook: it returns a context carrying the
// given identity, mirroring what Resolve does in production.
func WithIdentity(ctx context.Context, identity models.CartIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
