// Package store provides the key-value persistence behind the rubric map
// cache. Three backends share one interface: SQLite for single-machine
// workspaces, Redis for shared deployments, and an in-memory map for
// tests and throwaway runs.
package store

import "context"

// Store is a byte-oriented key-value store. Get distinguishes a missing
// key from an empty value via the found flag. Values are opaque to the
// store; freshness policy lives with the caller.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
