package backup

import "errors"

var (
	// ErrInvalidBackup is returned when a backup file fails structural or
	// cryptographic verification (truncated header, tag mismatch, swapped
	// metadata).
	ErrInvalidBackup = errors.New("invalid backup file")

	// ErrBackupNotFound is returned when no backup with the given name exists.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrInvalidBackupName is returned when a backup name fails validation.
	ErrInvalidBackupName = errors.New("invalid backup name")

	// ErrInvalidOutputPath is returned when a restore output path fails validation.
	ErrInvalidOutputPath = errors.New("invalid output path")

	// ErrPathTraversal is returned when a resolved path escapes the backup
	// base directory.
	ErrPathTraversal = errors.New("path escapes backup directory")

	// ErrSourceNotFound is returned when the backup source file does not exist.
	ErrSourceNotFound = errors.New("backup source file not found")
)
