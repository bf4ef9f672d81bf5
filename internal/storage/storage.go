// Package storage persists the fingerprint index and the song catalog.
// Snapshots are versioned and tagged with the pipeline parameters that
// produced them, so a store built under one configuration is never silently
// matched against under another.
package storage

import (
	"errors"
	"fmt"

	"constella/internal/fingerprint"
	"constella/internal/model"
	"constella/internal/store"
)

// SchemaVersion is bumped whenever the on-disk layout changes shape.
const SchemaVersion = 1

// ErrIncompatibleSnapshot is returned when a snapshot's schema version or
// pipeline parameters do not match the running configuration.
var ErrIncompatibleSnapshot = errors.New("stored snapshot is incompatible with this configuration")

// Backend saves and restores (store, catalog) pairs as one unit, which keeps
// the two from desyncing at the file level.
type Backend interface {
	// Save replaces any previous snapshot with the given one.
	Save(st *store.Store, catalog model.Catalog, cfg fingerprint.Config) error
	// Load restores the snapshot, verifying schema version and parameters.
	// An empty backend yields an empty store and catalog.
	Load(cfg fingerprint.Config) (*store.Store, model.Catalog, error)
	Close() error
}

// paramString is the stored fingerprint of the pipeline configuration.
// Every field that shapes keys or postings participates.
func paramString(cfg fingerprint.Config) string {
	return fmt.Sprintf("w=%d;o=%d;n=%d;p=%g;f=%d",
		cfg.WindowSize, cfg.WindowOverlap, cfg.NeighborhoodIterations,
		cfg.AmpThresholdPct, cfg.FanoutSize)
}
