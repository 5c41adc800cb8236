package storage

import (
	"context"
	"errors"
	"fmt"
)

// Store drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Options selects and configures a store driver.
type Options struct {
	Driver   string
	BoltPath string
	Postgres PostgresOptions
}

// Open builds the configured store. The Postgres store gets its schema created.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverBolt, "":
		return OpenBolt(opts.BoltPath)
	case DriverPostgres:
		pool, err := NewDatabase(ctx, opts.Postgres)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err = store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
