package cmd

import (
	"github.com/flowcore/taskrunner/internal/config"
	"github.com/flowcore/taskrunner/internal/credstore"
	"github.com/flowcore/taskrunner/internal/logger"
	"github.com/flowcore/taskrunner/internal/oauth"
	"github.com/flowcore/taskrunner/internal/ratelimit"
)

// newCredStore picks the credential store backing OAuth token persistence:
// Vault when configured, otherwise the in-memory default, per SPEC_FULL.md's
// DOMAIN STACK wiring of hashicorp/vault/api.
func newCredStore(cfg *config.Config) (credstore.Store, error) {
	if cfg.VaultAddr != "" {
		return credstore.NewVaultStore(cfg.VaultAddr, cfg.VaultToken, "")
	}
	return credstore.NewMemoryStore(), nil
}

// newOAuthManager builds a real Manager over the built-in provider registry
// (Google/GitHub/Stripe/Slack) and the configured credential store, so the
// HTTP client is handed a non-nil manager. Neither the "http" DAG tool nor
// the scheduler's http action sets Options.OAuth, so no request made by the
// binary uses it.
func newOAuthManager(cfg *config.Config, log logger.Logger) (*oauth.Manager, error) {
	store, err := newCredStore(cfg)
	if err != nil {
		return nil, err
	}
	return oauth.NewManager(oauth.NewRegistry(), store), nil
}

// newRateLimitRegistry builds the rate-limit registry (spec.md §4.3),
// writing header-driven bucket configuration to Redis when cfg.RedisAddr is
// set. The registry does not read those limits back, so each process keeps
// its own buckets.
func newRateLimitRegistry(cfg *config.Config) *ratelimit.Registry {
	reg := ratelimit.NewRegistry()
	if cfg.RedisAddr != "" {
		reg = reg.WithSharedStore(ratelimit.NewRedisStore(cfg.RedisAddr))
	}
	return reg
}
