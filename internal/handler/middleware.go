package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/queries"
	"github.com/msomdec/snapgram/internal/service"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

const authCookieName = "auth_token"

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey).(*domain.User)
	return user
}

// TokenFromContext returns the session token the request authenticated with.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// RequireAuth is middleware that protects routes requiring authentication.
// It reads the session token from the auth_token cookie or a Bearer
// Authorization header, resolves the current user through the query cache
// and injects both into the request context. Returns 401 for unauthenticated
// requests.
func RequireAuth(q *queries.Client, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, user, err := authenticateRequest(r, q)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), token, user)))
	})
}

// OptionalAuth is middleware that attempts to authenticate but does not block
// unauthenticated requests. If a valid token is present, the user is injected
// into context; otherwise the request proceeds without a user.
func OptionalAuth(q *queries.Client, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, user, err := authenticateRequest(r, q)
		if err == nil && user != nil {
			r = r.WithContext(withUser(r.Context(), token, user))
		}
		next.ServeHTTP(w, r)
	})
}

func withUser(ctx context.Context, token string, user *domain.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

func authenticateRequest(r *http.Request, q *queries.Client) (string, *domain.User, error) {
	token := requestToken(r)
	if token == "" {
		return "", nil, domain.ErrUnauthorized
	}
	user, err := q.CurrentUser(r.Context(), token)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RateLimit rejects requests with 429 once the client's IP has used up its
// tokens in limiter.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many attempts. Please wait and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders sets conservative response headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
