package registry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "state", "registry.db"))
	cfg.Enabled = true
	return cfg
}

func TestOpen_Disabled(t *testing.T) {
	store, err := Open(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, Install{Service: "hwctl"}))
	installs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, installs)
	assert.NoError(t, store.Close())
}

func TestOpen_EnabledWithoutPath(t *testing.T) {
	_, err := Open(Config{Enabled: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidPath))
}

func TestRepository_RecordListRemove(t *testing.T) {
	cfg := testConfig(t)
	store, err := Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	require.NoError(t, store.Record(ctx, Install{
		Service:     "hwctl",
		DisplayName: "hwctl SMM driver",
		BinaryPath:  `C:\hwctl\hwctl.sys`,
		DevicePath:  `\\.\hwctl`,
		InstalledAt: at,
	}))
	require.NoError(t, store.Record(ctx, Install{
		Service:     "hwctl-ec",
		InstalledAt: at.Add(time.Minute),
	}))

	installs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, installs, 2)
	assert.Equal(t, "hwctl", installs[0].Service)
	assert.Equal(t, `\\.\hwctl`, installs[0].DevicePath)
	assert.True(t, at.Equal(installs[0].InstalledAt))
	assert.Equal(t, "hwctl-ec", installs[1].Service)

	require.NoError(t, store.Remove(ctx, "hwctl"))
	// removing an unknown service is not an error
	require.NoError(t, store.Remove(ctx, "missing"))

	installs, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "hwctl-ec", installs[0].Service)
}

func TestRepository_RecordUpserts(t *testing.T) {
	store, err := Open(testConfig(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, Install{Service: "hwctl", BinaryPath: "old.sys"}))
	require.NoError(t, store.Record(ctx, Install{Service: "hwctl", BinaryPath: "new.sys"}))

	installs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "new.sys", installs[0].BinaryPath)
	assert.False(t, installs[0].InstalledAt.IsZero())
}

func TestRepository_RecordRequiresService(t *testing.T) {
	store, err := Open(testConfig(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.Record(context.Background(), Install{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidInstall))
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, Install{Service: "hwctl"}))
	require.NoError(t, store.Close())

	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	installs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "hwctl", installs[0].Service)
}

func TestRepository_SchemaMismatchBacksUp(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, Install{Service: "hwctl"}))
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite3", cfg.Path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_versions SET version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	// the schema is recreated empty
	installs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, installs)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(cfg.Path), backupDirName))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "registry_v99_")
}

func TestGetSchemaVersion_EmptyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}
