package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"

	"leadsync-engine/internal/httpapi"
)

const tokenFile = "engine.token"

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeToken stores the shutdown token where only the current user can read
// it. The desktop shell reads it from the data dir.
func writeToken(dataDir, token string) (string, error) {
	path := filepath.Join(dataDir, tokenFile)
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// shutdownHandler stops the engine through stop, which cancels the root
// context: the refresh loop and any running fetch end, then the server
// drains. Callers must be local and present the token.
func shutdownHandler(token string, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpapi.WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
			return
		}
		if !httpapi.IsLocal(r) {
			httpapi.WriteError(w, r, http.StatusForbidden, "forbidden", "Shutdown is only accepted from this machine")
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpapi.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Missing or wrong shutdown token")
			return
		}

		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "shutting_down"})
		stop()
	}
}
