package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxBackupNameLen bounds operator-supplied backup names.
const maxBackupNameLen = 128

// ValidateBackupName rejects any name that could leave the backup directory:
// absolute paths, separators, "..", names outside the [A-Za-z0-9._-] charset,
// and names whose normalised basename differs from the input.
func ValidateBackupName(name string) error {
	if name == "" || len(name) > maxBackupNameLen {
		return fmt.Errorf("%w: empty or too long", ErrInvalidBackupName)
	}

	if filepath.IsAbs(name) {
		return fmt.Errorf("%w: absolute path", ErrInvalidBackupName)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: path separators not allowed", ErrInvalidBackupName)
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: parent references not allowed", ErrInvalidBackupName)
	}

	for _, r := range name {
		if !isAllowedNameRune(r) {
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidBackupName, r)
		}
	}

	if filepath.Base(filepath.Clean(name)) != name {
		return fmt.Errorf("%w: name does not normalise to itself", ErrInvalidBackupName)
	}

	return nil
}

func isAllowedNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	default:
		return false
	}
}

// ValidateOutputPath rejects restore targets containing parent references or
// home expansion, and verifies the parent directory can be created and
// written.
func ValidateOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidOutputPath)
	}

	if strings.HasPrefix(path, "~") {
		return fmt.Errorf("%w: home expansion not allowed", ErrInvalidOutputPath)
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("%w: parent references not allowed", ErrInvalidOutputPath)
		}
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("%w: cannot create parent directory: %v", ErrInvalidOutputPath, err)
	}

	info, err := os.Stat(parent)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: parent is not a writable directory", ErrInvalidOutputPath)
	}

	return nil
}

// resolveInBase joins a validated name to the canonicalised base directory and
// re-resolves the result. A resolved path that is not a descendant of the base
// aborts with ErrPathTraversal.
func resolveInBase(baseDir, name string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved, err := filepath.Abs(filepath.Join(base, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup path: %w", err)
	}

	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return resolved, nil
}
