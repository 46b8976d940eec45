package store

import (
	"context"
	"fmt"

	"netsentinel/pkg/config"
	"netsentinel/pkg/model"
)

// SampleStore is the append-only sample log shared by the sampling loop (single
// writer) and any number of readers. Readers see a prefix of committed samples.
type SampleStore interface {
	// Append persists s and assigns its ID. Samples are never updated afterwards.
	Append(ctx context.Context, s *model.Sample) error
	// QueryRecent returns up to limit samples, newest first by insertion order.
	QueryRecent(ctx context.Context, limit int) ([]model.Sample, error)
	Close() error
}

// Open constructs the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (SampleStore, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "mysql":
		return OpenMySQL(cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
