package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"storefront/auth"
)

var errNoIdentity = errors.New("missing bearer token")

// identify authenticates the request's bearer token.
func (h *Handler) identify(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" || h.tokens == nil {
		return auth.Identity{}, errNoIdentity
	}
	return h.tokens.Verify(strings.TrimSpace(raw))
}

// requireRole rejects callers without a valid token (401) or without role (403)
// before next runs.
func (h *Handler) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identify(r)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !auth.Permits(id.Roles, role) {
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// requireAuth rejects callers without a valid token (401). Ownership is checked by the
// handler through cartOwner.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identify(r)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// cartOwner returns the username in the path once the caller is allowed to act for it.
func cartOwner(r *http.Request) (string, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return "", auth.ErrPermissionDenied
	}
	owner := mux.Vars(r)["username"]
	if err := id.ActFor(owner); err != nil {
		return "", err
	}
	return owner, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs method, path, status and latency of every request.
func Logging(logger *log.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}

// CORS wraps the whole router so preflight requests are answered even for routes
// registered with other methods.
func CORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
