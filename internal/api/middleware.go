package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const maxQueryLimit = 1000

// publicPaths skip API key checks so probes and scrapers without the key
// can still see liveness.
var publicPaths = map[string]bool{
	"/health": true,
}

// authMiddleware requires "Authorization: Bearer <API_KEY>" on every
// non-public route, /metrics included. An empty key disables the check.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.apiKey == "" {
		return next
	}
	want := []byte(s.apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.reject(w, r, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			s.reject(w, r, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason string) {
	s.logger.Debug("rejected request", zap.String("path", r.URL.Path), zap.String("reason", reason))
	w.Header().Set("WWW-Authenticate", `Bearer realm="fiindo-etl"`)
	writeError(w, http.StatusUnauthorized, reason)
}

// corsMiddleware sits outside auth so browser preflights never need the key.
func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		if allowOrigin != "*" {
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseLimit reads ?limit=. Absent means fallback; values above
// maxQueryLimit are clamped; anything that is not a positive integer is an
// error the handler reports as 400.
func parseLimit(r *http.Request, fallback int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", v)
	}
	return min(n, maxQueryLimit), nil
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// writeJSON encodes before touching the response so an encoding failure
// still yields a clean 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		json.NewEncoder(&buf).Encode(errorBody{Error: "encoding response", Status: status})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Status: status})
}
