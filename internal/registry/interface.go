package registry

import (
	"context"
	"time"
)

// Store is the ledger of driver services this tool installed.
type Store interface {
	Record(ctx context.Context, install Install) error
	Remove(ctx context.Context, service string) error
	List(ctx context.Context) ([]Install, error)
	Close() error
}

// Install is one driver service created by hwctl.
type Install struct {
	Service     string
	DisplayName string
	BinaryPath  string
	DevicePath  string
	InstalledAt time.Time
}
