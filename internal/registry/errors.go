package registry

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidPath   = errors.ErrorCode("registry_invalid_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("registry_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("registry_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("registry_schema_migration_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("registry_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Record Errors
	ErrInvalidInstall = errors.ErrorCode("registry_invalid_install")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
