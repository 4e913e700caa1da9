package panel

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// authMiddleware validates bearer tokens against panel.token or the bcrypt
// panel.token_hash. With neither set every request passes through.
func authMiddleware(token, tokenHash string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" && tokenHash == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !tokenMatches(strings.TrimSpace(presented), token, tokenHash) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcpanel"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","kind":"unauthorized"}` + "\n"))
			return
		}
		next(w, r)
	}
}

func tokenMatches(presented, token, tokenHash string) bool {
	if presented == "" {
		return false
	}
	if tokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
