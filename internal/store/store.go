// Package store persists the one piece of core state that must survive a
// restart on its own: the credential vault's encrypted blob (A6). Catalog
// data (providers, mappings, bindings) lives in internal/catalog.Repo, and
// routed-request history lives in internal/logsink.Sink, both out of this
// package's scope.
package store

import "context"

// Store defines the persistence interface for vault blob storage.
type Store interface {
	SaveVaultBlob(ctx context.Context, salt []byte, data map[string]string) error
	LoadVaultBlob(ctx context.Context) (salt []byte, data map[string]string, err error)

	Migrate(ctx context.Context) error
	Close() error
}
