package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// Context keys for middleware
type contextKey string

const (
	claimsKey    contextKey = "claims"
	authErrorKey contextKey = "auth_error"
)

// Authenticate verifies a bearer token when one is present and stores the
// claims in the request context. Requests without a valid token continue
// anonymously; RequireAuth rejects them where an identity is needed.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := jwtauth.TokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.svc.Authenticate(r.Context(), token)
		if err != nil {
			ctx := context.WithValue(r.Context(), authErrorKey, err)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		httplog.LogEntrySetField(r.Context(), "principal_id", slog.StringValue(claims.PrincipalID.String()))
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth answers 401 unless Authenticate accepted a token
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		message := "access token required"
		if err, ok := r.Context().Value(authErrorKey).(error); ok && errors.Is(err, sitecontent.ErrUnauthenticated) {
			message = "invalid or expired token"
		}
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: message})
	})
}

// ClaimsFromContext returns the claims Authenticate stored, if any
func ClaimsFromContext(ctx context.Context) (*sitecontent.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*sitecontent.Claims)
	return claims, ok && claims != nil
}

// caller builds the identity and request facts the service records
func caller(r *http.Request) sitecontent.Caller {
	c := sitecontent.Caller{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		c.PrincipalID = claims.PrincipalID
	}
	return c
}

// clientIP strips the port from RemoteAddr. Forwarded headers only count
// when the server trusts its proxy and middleware.RealIP has rewritten it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Deadline bounds the request context. Handlers render the 504 themselves
// when the service reports ErrTimeout, so nothing is written here.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders sets the browser hardening headers on every response
func SecurityHeaders(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; object-src 'none'; frame-ancestors 'self'")
			if production {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// crossOriginResources lets other origins embed uploaded images
func crossOriginResources(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}
