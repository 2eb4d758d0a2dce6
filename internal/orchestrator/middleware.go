package orchestrator

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"
)

const AgentKeyHeader = "X-Agent-Key"

// AgentKeyMiddleware пропускает только агентов с общим ключом
func AgentKeyMiddleware(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AgentKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
