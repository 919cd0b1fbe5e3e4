package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"leadsync-engine/internal/config"
)

const (
	// "Service" groups the engine's secrets in the OS keychain.
	KeyringService = "leadsync"

	// EnvAPIKey is read when the keychain has nothing.
	EnvAPIKey = "APOLLO_API_KEY"
)

var ErrNoAPIKey = errors.New("Apollo API key not found (set it in keychain or via " + EnvAPIKey + ")")

// GetAPIKey looks in the keychain first, then the environment.
func GetAPIKey(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		key, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), nil
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

func SetAPIKey(keyringAccount string, key string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, strings.TrimSpace(key))
}

func DeleteAPIKey(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func APIKeyAccount(cfg config.Config) string {
	if a := strings.TrimSpace(cfg.Apollo.KeyringAccount); a != "" {
		return a
	}
	return "leadsync:apollo"
}
