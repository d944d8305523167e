package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	Config  Config
	Skipper Skipper
}

// NewMiddleware constructs Middleware that leaves health and metrics endpoints open.
func NewMiddleware(cfg Config) Middleware {
	skipper := func(r *http.Request) bool {
		return r.Method == http.MethodOptions || r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	return Middleware{Config: cfg, Skipper: skipper}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="progress-tracker"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, ErrInvalidToken
	}
	return ParseClaims(token, m.Config)
}
