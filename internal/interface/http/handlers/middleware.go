package handlers

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN KEY AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAdminKeyHeader is the header staff clients send their key in.
const DefaultAdminKeyHeader = "X-Admin-Key"

// AdminKeyAuth checks admin API keys against bcrypt hashes. Only hashes are
// configured, so a leaked config file does not leak usable keys.
type AdminKeyAuth struct {
	headerName string
	hashes     [][]byte

	// verified remembers keys that matched, by SHA-256 digest, so bcrypt
	// runs once per key rather than once per request.
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]bool
}

// NewAdminKeyAuth creates an authenticator. Empty hashes are skipped; with
// no hashes every request is rejected.
func NewAdminKeyAuth(headerName string, hashes []string) *AdminKeyAuth {
	if headerName == "" {
		headerName = DefaultAdminKeyHeader
	}

	a := &AdminKeyAuth{
		headerName: headerName,
		verified:   make(map[[sha256.Size]byte]bool),
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether at least one key hash is configured.
func (a *AdminKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// IsValid checks key against the configured hashes.
func (a *AdminKeyAuth) IsValid(key string) bool {
	if key == "" || !a.Enabled() {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	a.mu.RLock()
	ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.mu.Lock()
			a.verified[digest] = true
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid admin key. onDenied writes
// the error response; status is 401 for a missing key and 403 otherwise.
func (a *AdminKeyAuth) Middleware(onDenied func(w http.ResponseWriter, r *http.Request, status int)) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(a.headerName)

			// Also check Authorization header with Bearer scheme
			if key == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" {
				onDenied(w, r, http.StatusUnauthorized)
				return
			}
			if !a.IsValid(key) {
				onDenied(w, r, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HashAdminKey returns the bcrypt hash to put in ADMIN_API_KEY_HASHES.
func HashAdminKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// NoCacheMiddleware prevents caching.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies. Oversized
// bodies surface as a decode error in the handler.
func RequestSizeLimitMiddleware(maxBytes int64) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions. The first one is outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
