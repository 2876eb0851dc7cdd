package registry

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	defaultDirPerm = 0o755
	backupDirName  = "backups"
)

type Config struct {
	Path            string
	Enabled         bool
	BackupOnMigrate bool
}

func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		BackupOnMigrate: true,
	}
}

func (c Config) Validate() error {
	// Only validate Path if the registry is enabled
	if c.Enabled && c.Path == "" {
		return errors.New().New(ErrInvalidPath)
	}
	return nil
}
