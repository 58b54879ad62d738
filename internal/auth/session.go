package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// DefaultCookieName is the session cookie name used when none is configured
const DefaultCookieName = "codeburst_session"

type contextKey string

const identityKey contextKey = "auth_identity"

// Identity is the resolved session attached to a request
type Identity struct {
	State   State
	User    *domain.User
	Session *domain.Session
	Token   string
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity of the request, anonymous when none was
// resolved.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{State: StateAnonymous}
}

// IsAuthenticated reports whether the request carries a valid session
func IsAuthenticated(ctx context.Context) bool {
	return IdentityFrom(ctx).State == StateAuthenticated
}

// CurrentUser returns the authenticated user of the request
func CurrentUser(ctx context.Context) (*domain.User, bool) {
	id := IdentityFrom(ctx)
	if id.State != StateAuthenticated || id.User == nil {
		return nil, false
	}
	return id.User, true
}

// Middleware resolves the session token from the cookie or a bearer header
// and attaches the Identity to the request context. It never rejects a
// request; handlers decide with NextTarget or RequireUser.
func Middleware(svc *Service, cookie CookieConfig) func(http.Handler) http.Handler {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookie.Name)
			id := Identity{State: StateAnonymous}

			if token != "" {
				user, session, err := svc.ValidateSession(r.Context(), token)
				switch {
				case err == nil:
					id = Identity{State: StateAuthenticated, User: user, Session: session, Token: token}
				case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrSessionNotFound):
					ClearCookie(w, cookie)
				default:
					slog.Warn("session lookup failed", "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest returns the session token from the Authorization header
// or the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie writes the HTTP-only session cookie
func SetCookie(w http.ResponseWriter, cfg CookieConfig, token string, expires time.Time) {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie
func ClearCookie(w http.ResponseWriter, cfg CookieConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
