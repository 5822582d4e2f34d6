package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/users"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	// slotKey holds a *Principal placed by LoggingMiddleware so the outer
	// request log can name the owner resolved further down the chain.
	slotKey contextKey = "principal-slot"
)

// Principal is the authenticated caller. Owner scopes analysis types.
type Principal struct {
	Owner  string
	Admin  bool
	Method string // "api_key" | "basic"
}

// PasswordAuthenticator checks email/password pairs (users service).
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
}

// Authenticate accepts "Authorization: Bearer <key>" from the configured
// owner keys, or HTTP basic credentials checked against the users table.
func Authenticate(apiKeys map[string]string, admins []string, passwords PasswordAuthenticator) func(http.Handler) http.Handler {
	isAdmin := func(owner string) bool {
		for _, a := range admins {
			if a == owner {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email, password, ok := r.BasicAuth(); ok && passwords != nil {
				u, err := passwords.Authenticate(r.Context(), email, password)
				if err != nil {
					w.Header().Set("WWW-Authenticate", `Basic realm="auditor"`)
					http.Error(w, "invalid credentials", http.StatusUnauthorized)
					return
				}
				p := Principal{Owner: u.Email, Admin: u.IsAdmin || isAdmin(u.Email), Method: "basic"}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// constant-time comparison
			var owner string
			for o, key := range apiKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					owner = o
					break
				}
			}
			if owner == "" {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			p := Principal{Owner: owner, Admin: isAdmin(owner), Method: "api_key"}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if slot, ok := ctx.Value(slotKey).(*Principal); ok {
		*slot = p
	}
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom extracts the principal set by Authenticate
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

// OwnerFrom returns the principal's owner id or "".
func OwnerFrom(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Owner
}

// RequireAdmin rejects non-admin principals with 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		if !p.Admin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
