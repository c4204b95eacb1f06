package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

// VaultSecretStore keeps TOTP secrets in HashiCorp Vault using the KV v2
// API, so enrollment material never lives in the primary identity store.
type VaultSecretStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultSecretStore creates a secret store backed by the Vault server at
// the given address, authenticating with the supplied token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token with read/write access to the mount
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "approval")
func NewVaultSecretStore(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultSecretStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSecretStore{
		client:    client,
		mountPath: strings.TrimSuffix(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

// PutSecret stores the TOTP secret for an identity.
func (s *VaultSecretStore) PutSecret(ctx context.Context, identityID, secret string) error {
	path := s.secretPath(identityID)

	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"totp_secret": secret,
		},
	})
	if err != nil {
		s.log.Error("Failed to write TOTP secret to Vault",
			slog.String("path", path),
			slog.String("identityID", identityID),
			"err", err)
		return fmt.Errorf("failed to write secret to Vault: %w", err)
	}

	s.log.Debug("Stored TOTP secret in Vault", slog.String("identityID", identityID))
	return nil
}

// GetSecret returns the TOTP secret for an identity, or ErrNotFound.
func (s *VaultSecretStore) GetSecret(ctx context.Context, identityID string) (string, error) {
	path := s.secretPath(identityID)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read TOTP secret from Vault",
			slog.String("path", path),
			slog.String("identityID", identityID),
			"err", err)
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: TOTP secret for identity %s", interfaces.ErrNotFound, identityID)
	}

	// KV v2 wraps the payload in a "data" field.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected Vault response format at %s", path)
	}
	value, ok := data["totp_secret"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: TOTP secret for identity %s", interfaces.ErrNotFound, identityID)
	}

	return value, nil
}

// secretPath builds the KV v2 data path for an identity's secret.
func (s *VaultSecretStore) secretPath(identityID string) string {
	return fmt.Sprintf("%s/data/%s/totp/%s", s.mountPath, s.dataPath, identityID)
}
