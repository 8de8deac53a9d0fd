// Package storage persists the engine's synced rule blob and its event history.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// BlobStore persists the single synced-data blob owned by the rule engine.
type BlobStore interface {
	host.SyncedData
	Close() error
}

// Open returns a BlobStore for the given driver rooted at dir.
func Open(driver, dir string) (BlobStore, error) {
	switch driver {
	case "", DriverFile:
		return NewFileBlobStore(filepath.Join(dir, "rules.json")), nil
	case DriverSQLite:
		return NewSQLiteBlobStore(filepath.Join(dir, "ruleflow.db"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
