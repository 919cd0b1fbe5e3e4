package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setAPIKeyReq struct {
	APIKey string `json:"apiKey"`
}

func (h SecretsHandler) SetApolloKey(w http.ResponseWriter, r *http.Request) {
	var req setAPIKeyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetAPIKey(secrets.APIKeyAccount(cfg), req.APIKey); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to store api key: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteApolloKey(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.DeleteAPIKey(secrets.APIKeyAccount(cfg)); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to delete api key: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApolloKeyStatus reports whether a key is available without revealing it.
func (h SecretsHandler) ApolloKeyStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	_, err := secrets.GetAPIKey(secrets.APIKeyAccount(cfg))
	writeJSON(w, map[string]any{"configured": err == nil})
}
