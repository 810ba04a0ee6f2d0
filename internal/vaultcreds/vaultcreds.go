// Package vaultcreds stores and retrieves Binance API credentials from
// HashiCorp Vault, adapted from the teacher's internal/vault/client.go.
// The teacher keys secrets per user; this engine has no user concept, so
// credentials are keyed per trading mode (testnet/mainnet) instead.
package vaultcreds

import (
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"sentineld/internal/config"
	"sentineld/internal/sentinel"
)

// Credentials is one Binance API key pair for a trading mode.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Store wraps the HashiCorp Vault client with a local cache fallback for
// disabled-Vault deployments (single-operator / development setups).
type Store struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[sentinel.TradingMode]Credentials
}

// New creates a Store. When Vault is disabled, operations fall back to the
// in-process cache only, matching the teacher's degraded-Vault behavior.
func New(cfg config.VaultConfig) (*Store, error) {
	s := &Store{config: cfg, cache: make(map[sentinel.TradingMode]Credentials)}
	if !cfg.Enabled {
		return s, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	s.client = client
	return s, nil
}

// Store writes credentials for a trading mode to Vault (or the local cache
// when Vault is disabled).
func (s *Store) Store(mode sentinel.TradingMode, creds Credentials) error {
	if !s.config.Enabled {
		s.mu.Lock()
		s.cache[mode] = creds
		s.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    creds.APIKey,
			"secret_key": creds.SecretKey,
		},
	}
	if _, err := s.client.Logical().Write(s.path(mode), secretData); err != nil {
		return fmt.Errorf("store credentials in vault: %w", err)
	}

	s.mu.Lock()
	s.cache[mode] = creds
	s.mu.Unlock()
	return nil
}

// Get retrieves credentials for a trading mode, preferring the local cache.
func (s *Store) Get(mode sentinel.TradingMode) (Credentials, error) {
	s.mu.RLock()
	if cached, ok := s.cache[mode]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	if !s.config.Enabled {
		return Credentials{}, fmt.Errorf("no credentials cached for mode %s and vault is disabled", mode)
	}

	secret, err := s.client.Logical().Read(s.path(mode))
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("no credentials stored for mode %s", mode)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("invalid secret format for mode %s", mode)
	}
	creds := Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}

	s.mu.Lock()
	s.cache[mode] = creds
	s.mu.Unlock()
	return creds, nil
}

// Rotate replaces the stored credentials for a trading mode.
func (s *Store) Rotate(mode sentinel.TradingMode, creds Credentials) error {
	return s.Store(mode, creds)
}

func (s *Store) path(mode sentinel.TradingMode) string {
	return fmt.Sprintf("%s/data/%s/%s", s.config.MountPath, s.config.SecretPath, mode)
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}
