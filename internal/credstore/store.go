// Package credstore defines the credential-store collaborator interface
// (spec.md §1: get(name,key)/set(name,key,value)) and ships two
// implementations: an in-memory default and a Vault-backed adapter for
// production use.
package credstore

import "context"

// Store is the minimal interface the OAuth manager and DAG tools consume.
// A miss on Get surfaces as (``, false, nil) — not an error — so callers can
// initiate an auth flow (spec.md §7, CREDENTIAL_NOT_FOUND).
type Store interface {
	Get(ctx context.Context, name, key string) (value string, found bool, err error)
	Set(ctx context.Context, name, key, value string) error
}
