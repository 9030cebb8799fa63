package credstore

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
)

// VaultStore adapts HashiCorp Vault's KV v2 secrets engine to the Store
// interface, for deployments that need durable, access-controlled
// credential storage rather than the in-memory default.
type VaultStore struct {
	client     *vaultapi.Client
	mountPath  string // e.g. "secret"
}

// NewVaultStore builds a VaultStore against addr, authenticating with token.
func NewVaultStore(addr, token, mountPath string) (*VaultStore, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(token)
	if mountPath == "" {
		mountPath = "secret"
	}
	return &VaultStore{client: client, mountPath: mountPath}, nil
}

func (v *VaultStore) path(name string) string {
	return fmt.Sprintf("%s/data/credentials/%s", v.mountPath, name)
}

// Get reads a single key out of the KV v2 secret named name.
func (v *VaultStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path(name))
	if err != nil {
		return "", false, fmt.Errorf("vault read %s: %w", name, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return "", false, nil
	}
	raw, ok := data[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	return s, ok, nil
}

// Set writes key=value into the KV v2 secret named name, merging with any
// existing keys under that secret.
func (v *VaultStore) Set(ctx context.Context, name, key, value string) error {
	existing := map[string]any{}
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path(name))
	if err == nil && secret != nil && secret.Data != nil {
		if data, ok := secret.Data["data"].(map[string]any); ok {
			existing = data
		}
	}
	existing[key] = value

	_, err = v.client.Logical().WriteWithContext(ctx, v.path(name), map[string]any{
		"data": existing,
	})
	if err != nil {
		return fmt.Errorf("vault write %s: %w", name, err)
	}
	return nil
}
