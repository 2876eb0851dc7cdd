// Package registry keeps a sqlite ledger of the driver services hwctl
// created, so stale installs can be torn down later.
package registry

import (
	"context"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// No-op implementation
type noopStore struct{}

// Open returns the ledger described by cfg, or a no-op store when the
// registry is disabled.
func Open(cfg Config) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Driver registry disabled, using no-op store")
		return noopStore{}, nil
	}

	repo, err := newRepository(cfg, logger.Default())
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (noopStore) Record(context.Context, Install) error   { return nil }
func (noopStore) Remove(context.Context, string) error    { return nil }
func (noopStore) List(context.Context) ([]Install, error) { return nil, nil }
func (noopStore) Close() error                            { return nil }
