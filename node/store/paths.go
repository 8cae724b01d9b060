// Package store is the default on-disk persistence layer: a bbolt-backed
// journal of the ledger, registry, and slashing state plus an alternate
// Postgres-backed treasury journal for operators who run the treasury
// accounting off a relational store (spec.md SPEC_FULL.md [DOMAIN]
// Third-party stack).
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// NetworkDir returns the on-disk directory for a given network under
// datadir, mirroring the teacher's chain-scoped layout
// (datadir/networks/<network>/).
func NetworkDir(datadir, network string) string {
	return filepath.Join(datadir, "networks", network)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
