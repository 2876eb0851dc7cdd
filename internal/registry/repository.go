package registry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.Path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	dsn := cfg.Path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.Path, cfg.BackupOnMigrate, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Debug().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Msg("Registry repository initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func (r *repository) Record(ctx context.Context, install Install) error {
	errFactory := errors.New()

	if install.Service == "" {
		return errFactory.WithMessage(ErrInvalidInstall, "install has no service name")
	}
	if install.InstalledAt.IsZero() {
		install.InstalledAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, upsertInstallSQL,
		install.Service,
		install.DisplayName,
		install.BinaryPath,
		install.DevicePath,
		install.InstalledAt.Unix(),
	); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err).WithData(install.Service)
	}

	r.logger.Debug().Str("service", install.Service).Msg("Recorded driver install")

	return nil
}

func (r *repository) Remove(ctx context.Context, service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, deleteInstallSQL, service); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err).WithData(service)
	}

	return nil
}

func (r *repository) List(ctx context.Context) ([]Install, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, listInstallsSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var installs []Install
	for rows.Next() {
		var (
			in          Install
			installedAt int64
		)
		if err := rows.Scan(&in.Service, &in.DisplayName, &in.BinaryPath, &in.DevicePath, &installedAt); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		in.InstalledAt = time.Unix(installedAt, 0)
		installs = append(installs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return installs, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("Registry repository closed")

	return nil
}
