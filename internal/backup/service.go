// Package backup implements the encrypted backup engine: AES-256-GCM file
// encryption with a self-describing metadata envelope, safe path resolution,
// and the backup lifecycle (create, restore, list, verify, delete, cleanup).
package backup

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// metadataDirName is the sidecar metadata directory inside the backup directory.
	metadataDirName = ".metadata"
	// keysDirName is the key directory under the service root.
	keysDirName = ".keys"
	// backupsDirName is the backup directory under the service root.
	backupsDirName = "backups"
	// backupExt is the extension of encrypted backup files.
	backupExt = ".enc"

	// headerLen is the fixed frame header size: uint32 package length plus
	// uint16 metadata length, both big-endian.
	headerLen = 6
	// maxMetadataLen is the largest metadata block the uint16 length can carry.
	maxMetadataLen = 1<<16 - 1

	// Algorithm identifies the cipher recorded in every metadata envelope.
	Algorithm = "AES-256-GCM"
)

// Service is the encrypted backup engine rooted at a service directory.
// Backups live in <root>/backups, metadata sidecars in <root>/backups/.metadata
// and key material in <root>/.keys.
type Service struct {
	backupDir string
	metaDir   string
	keyDir    string
}

// NewService creates a backup service rooted at the given directory, creating
// the backup and metadata directories as needed.
func NewService(root string) (*Service, error) {
	s := &Service{
		backupDir: filepath.Join(root, backupsDirName),
		metaDir:   filepath.Join(root, backupsDirName, metadataDirName),
		keyDir:    filepath.Join(root, keysDirName),
	}

	if err := os.MkdirAll(s.metaDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directories: %w", err)
	}

	return s, nil
}

// CreateOptions tunes backup creation.
type CreateOptions struct {
	// Password switches to the password-derived key path (PBKDF2-HMAC-SHA256).
	// Empty means the master key is used directly.
	Password string
	// Metadata carries operator-supplied fields merged into the envelope
	// (source_file, backup_type, version, ...).
	Metadata map[string]any
}

// CreateResult reports a completed backup.
type CreateResult struct {
	Name             string    `json:"name"`
	BackupPath       string    `json:"backup_path"`
	MetadataPath     string    `json:"metadata_path"`
	OriginalSize     int64     `json:"original_size"`
	EncryptedSize    int64     `json:"encrypted_size"`
	CompressionRatio float64   `json:"compression_ratio"`
	CreatedAt        time.Time `json:"created_at"`
}

// Create produces an encrypted backup of the source file. The name defaults
// to backup_<UTC timestamp>; explicit names are validated before any file is
// written, and identically named concurrent creations race with
// last-writer-wins semantics.
func (s *Service) Create(sourcePath, name string, opts CreateOptions) (*CreateResult, error) {
	if name == "" {
		name = "backup_" + time.Now().UTC().Format("20060102_150405")
	}

	if err := ValidateBackupName(name); err != nil {
		return nil, err
	}

	plaintext, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}

		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	now := time.Now().UTC()

	envelope := map[string]any{}
	for k, v := range opts.Metadata {
		envelope[k] = v
	}

	envelope["original_name"] = filepath.Base(sourcePath)
	envelope["original_size"] = len(plaintext)
	envelope["encrypted_at"] = now.Format(time.RFC3339)
	envelope["algorithm"] = Algorithm

	metadataJSON, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup metadata: %w", err)
	}

	if len(metadataJSON) > maxMetadataLen {
		return nil, fmt.Errorf("%w: metadata too large", ErrInvalidBackup)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := s.keyFor(opts.Password, salt)
	if err != nil {
		return nil, err
	}

	pkg, err := seal(key, salt, plaintext, metadataJSON)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, headerLen+len(metadataJSON)+len(pkg))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(pkg)))
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(metadataJSON)))
	frame = append(frame, metadataJSON...)
	frame = append(frame, pkg...)

	backupPath, err := s.backupPath(name)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(backupPath, frame, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	metadataPath, err := resolveInBase(s.metaDir, name+".json")
	if err != nil {
		return nil, err
	}

	// The sidecar is informational only; the authoritative metadata lives
	// inside the .enc file.
	if err := os.WriteFile(metadataPath, metadataJSON, 0o640); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("failed to write metadata sidecar")
	}

	return &CreateResult{
		Name:             name,
		BackupPath:       backupPath,
		MetadataPath:     metadataPath,
		OriginalSize:     int64(len(plaintext)),
		EncryptedSize:    int64(len(frame)),
		CompressionRatio: ratio(len(frame), len(plaintext)),
		CreatedAt:        now,
	}, nil
}

// RestoreResult reports a completed restore.
type RestoreResult struct {
	RestoredTo   string         `json:"restored_to"`
	RestoredSize int64          `json:"restored_size"`
	Metadata     map[string]any `json:"metadata"`
}

// RestoreOptions tunes backup restoration.
type RestoreOptions struct {
	// Password must match the one used at creation on the password-derived
	// key path. Empty means the master key is used.
	Password string
}

// Restore decrypts a backup to the output path. No partial plaintext is ever
// written: decryption happens in memory and the result is written to a
// temporary file promoted atomically on success.
func (s *Service) Restore(name, outputPath string, opts RestoreOptions) (*RestoreResult, error) {
	if err := ValidateBackupName(name); err != nil {
		return nil, err
	}

	if err := ValidateOutputPath(outputPath); err != nil {
		return nil, err
	}

	backupPath, err := s.backupPath(name)
	if err != nil {
		return nil, err
	}

	frame, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}

		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	metadataJSON, pkg, err := parseFrame(frame)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata", ErrInvalidBackup)
	}

	key, err := s.keyFor(opts.Password, packageSalt(pkg))
	if err != nil {
		return nil, err
	}

	plaintext, err := open(key, pkg, metadataJSON)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(outputPath, plaintext, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write restored file: %w", err)
	}

	return &RestoreResult{
		RestoredTo:   outputPath,
		RestoredSize: int64(len(plaintext)),
		Metadata:     metadata,
	}, nil
}

// Info describes one backup in a listing.
type Info struct {
	Name       string         `json:"name"`
	Path       string         `json:"path"`
	Size       int64          `json:"size"`
	ModifiedAt time.Time      `json:"modified_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// List enumerates backups sorted by modification time, newest first, reading
// the optional metadata sidecar when present.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != backupExt {
			continue
		}

		stat, err := entry.Info()
		if err != nil {
			continue
		}

		name := entry.Name()[:len(entry.Name())-len(backupExt)]

		info := Info{
			Name:       name,
			Path:       filepath.Join(s.backupDir, entry.Name()),
			Size:       stat.Size(),
			ModifiedAt: stat.ModTime().UTC(),
		}

		if sidecar, err := os.ReadFile(filepath.Join(s.metaDir, name+".json")); err == nil {
			var metadata map[string]any
			if json.Unmarshal(sidecar, &metadata) == nil {
				info.Metadata = metadata
			}
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})

	return infos, nil
}

// Delete removes a backup and its metadata sidecar.
func (s *Service) Delete(name string) error {
	if err := ValidateBackupName(name); err != nil {
		return err
	}

	backupPath, err := s.backupPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(backupPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}

		return fmt.Errorf("failed to delete backup: %w", err)
	}

	metadataPath, err := resolveInBase(s.metaDir, name+".json")
	if err == nil {
		if err := os.Remove(metadataPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("name", name).Msg("failed to delete metadata sidecar")
		}
	}

	return nil
}

// VerifyResult reports a structural integrity check.
type VerifyResult struct {
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Verify parses the frame header, sanity-checks the declared sizes against the
// file, and decodes the metadata JSON — without decrypting. The original file
// is never touched.
func (s *Service) Verify(name string) (*VerifyResult, error) {
	if err := ValidateBackupName(name); err != nil {
		return nil, err
	}

	backupPath, err := s.backupPath(name)
	if err != nil {
		return nil, err
	}

	frame, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}

		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	metadataJSON, pkg, err := parseFrame(frame)
	if err != nil {
		return &VerifyResult{Valid: false, Reason: err.Error()}, nil
	}

	if len(pkg) < saltSize+nonceSize+1 {
		return &VerifyResult{Valid: false, Reason: "encrypted package too short"}, nil
	}

	var metadata map[string]any
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return &VerifyResult{Valid: false, Reason: "malformed metadata JSON"}, nil
	}

	return &VerifyResult{Valid: true, Metadata: metadata}, nil
}

// Cleanup keeps the N most recent backups and deletes the rest, returning the
// number removed. Maintenance jobs call this detached from any request, so it
// is idempotent.
func (s *Service) Cleanup(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	infos, err := s.List()
	if err != nil {
		return 0, err
	}

	if len(infos) <= keep {
		return 0, nil
	}

	removed := 0

	for _, info := range infos[keep:] {
		if err := s.Delete(info.Name); err != nil {
			log.Warn().Err(err).Str("name", info.Name).Msg("failed to delete old backup")
			continue
		}

		removed++
	}

	return removed, nil
}

// RotateMasterKey replaces the master key, keeping the previous key as a
// timestamped backup. Existing backups are not re-encrypted and still require
// the retained old key to restore.
func (s *Service) RotateMasterKey() error {
	return rotateMasterKey(s.keyDir)
}

// BackupDir returns the directory that holds encrypted backups.
func (s *Service) BackupDir() string {
	return s.backupDir
}

// keyFor selects the encryption key: the PBKDF2-derived key when a password
// is supplied, the master key otherwise.
func (s *Service) keyFor(password string, salt []byte) ([]byte, error) {
	if password != "" {
		return deriveKey(password, salt), nil
	}

	return loadOrCreateMasterKey(s.keyDir)
}

func (s *Service) backupPath(name string) (string, error) {
	return resolveInBase(s.backupDir, name+backupExt)
}

// parseFrame splits a backup file into its metadata JSON and encrypted
// package, validating the declared lengths against the actual file size.
func parseFrame(frame []byte) (metadataJSON, pkg []byte, err error) {
	if len(frame) < headerLen {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrInvalidBackup)
	}

	pkgLen := int(binary.BigEndian.Uint32(frame[0:4]))
	metaLen := int(binary.BigEndian.Uint16(frame[4:6]))

	if len(frame) != headerLen+metaLen+pkgLen {
		return nil, nil, fmt.Errorf("%w: declared lengths do not match file size", ErrInvalidBackup)
	}

	metadataJSON = frame[headerLen : headerLen+metaLen]
	pkg = frame[headerLen+metaLen:]

	return metadataJSON, pkg, nil
}

// writeAtomic writes data to a temporary file in the target directory and
// promotes it with a rename, so readers never observe a partial file.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err //nolint:wrapcheck
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err //nolint:wrapcheck
	}

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err //nolint:wrapcheck
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err //nolint:wrapcheck
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err //nolint:wrapcheck
	}

	return nil
}

func ratio(encrypted, original int) float64 {
	if original == 0 {
		return 0
	}

	return float64(encrypted) / float64(original)
}
