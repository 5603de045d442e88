package backup

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, string) {
	t.Helper()

	root := t.TempDir()

	svc, err := NewService(root)
	require.NoError(t, err)

	source := filepath.Join(root, "campus.db")
	require.NoError(t, os.WriteFile(source, []byte("sqlite payload for backup tests"), 0o640))

	return svc, source
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "nightly", CreateOptions{
		Metadata: map[string]any{"backup_type": "manual"},
	})
	require.NoError(t, err)
	assert.Equal(t, "nightly", result.Name)
	assert.FileExists(t, result.BackupPath)
	assert.FileExists(t, result.MetadataPath)

	output := filepath.Join(t.TempDir(), "restored.db")

	restored, err := svc.Restore("nightly", output, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, "manual", restored.Metadata["backup_type"])
	assert.Equal(t, Algorithm, restored.Metadata["algorithm"])

	originalBytes, err := os.ReadFile(source)
	require.NoError(t, err)
	restoredBytes, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, originalBytes, restoredBytes)
}

func TestCreateDefaultName(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "", CreateOptions{})
	require.NoError(t, err)
	assert.Regexp(t, `^backup_\d{8}_\d{6}$`, result.Name)
}

func TestCreateMissingSource(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create("/nonexistent/file.db", "x", CreateOptions{})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRestoreWithPassword(t *testing.T) {
	svc, source := setupService(t)

	_, err := svc.Create(source, "protected", CreateOptions{Password: "hunter2"})
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "out.db")

	_, err = svc.Restore("protected", output, RestoreOptions{Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidBackup)
	assert.NoFileExists(t, output)

	_, err = svc.Restore("protected", output, RestoreOptions{Password: "hunter2"})
	require.NoError(t, err)
	assert.FileExists(t, output)
}

func TestRestoreTamperedBackup(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "tampered", CreateOptions{})
	require.NoError(t, err)

	frame, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	// flip one ciphertext bit
	frame[len(frame)-1] ^= 0x01
	require.NoError(t, os.WriteFile(result.BackupPath, frame, 0o640))

	output := filepath.Join(t.TempDir(), "out.db")

	_, err = svc.Restore("tampered", output, RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidBackup)
	// no partial plaintext reaches disk
	assert.NoFileExists(t, output)
}

func TestRestoreTamperedMetadata(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "relabelled", CreateOptions{})
	require.NoError(t, err)

	frame, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)

	// rewrite one letter of the algorithm string inside the metadata region,
	// keeping the JSON well formed so only the AAD binding can catch it
	metaLen := int(binary.BigEndian.Uint16(frame[4:6]))
	meta := frame[headerLen : headerLen+metaLen]
	pos := bytes.Index(meta, []byte(Algorithm))
	require.GreaterOrEqual(t, pos, 0)
	meta[pos] ^= 0x01
	require.NoError(t, os.WriteFile(result.BackupPath, frame, 0o640))

	output := filepath.Join(t.TempDir(), "out.db")

	_, err = svc.Restore("relabelled", output, RestoreOptions{})
	assert.ErrorIs(t, err, ErrInvalidBackup)
	assert.NoFileExists(t, output)
}

func TestRestoreUnknownBackup(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Restore("missing", filepath.Join(t.TempDir(), "out.db"), RestoreOptions{})
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestVerify(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "checkme", CreateOptions{})
	require.NoError(t, err)

	verdict, err := svc.Verify("checkme")
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.Equal(t, Algorithm, verdict.Metadata["algorithm"])

	// truncate the file so the declared lengths no longer match
	frame, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(result.BackupPath, frame[:len(frame)-4], 0o640))

	verdict, err = svc.Verify("checkme")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.NotEmpty(t, verdict.Reason)
}

func TestListNewestFirst(t *testing.T) {
	svc, source := setupService(t)

	for _, name := range []string{"first", "second"} {
		_, err := svc.Create(source, name, CreateOptions{})
		require.NoError(t, err)
	}

	// force distinct modification times
	require.NoError(t, os.Chtimes(filepath.Join(svc.BackupDir(), "first.enc"),
		time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	infos, err := svc.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "second", infos[0].Name)
	assert.Equal(t, "first", infos[1].Name)
}

func TestDelete(t *testing.T) {
	svc, source := setupService(t)

	result, err := svc.Create(source, "gone", CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete("gone"))
	assert.NoFileExists(t, result.BackupPath)
	assert.NoFileExists(t, result.MetadataPath)

	assert.ErrorIs(t, svc.Delete("gone"), ErrBackupNotFound)
}

func TestCleanupKeepsNewest(t *testing.T) {
	svc, source := setupService(t)

	names := []string{"old1", "old2", "keep1", "keep2"}
	for i, name := range names {
		_, err := svc.Create(source, name, CreateOptions{})
		require.NoError(t, err)

		mtime := time.Now().Add(time.Duration(i-len(names)) * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(svc.BackupDir(), name+".enc"), mtime, mtime))
	}

	removed, err := svc.Cleanup(2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	infos, err := svc.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "keep2", infos[0].Name)
	assert.Equal(t, "keep1", infos[1].Name)

	// already within budget
	removed, err = svc.Cleanup(2)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRotateMasterKey(t *testing.T) {
	svc, source := setupService(t)

	// creating a backup materialises the master key
	_, err := svc.Create(source, "pre-rotate", CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.RotateMasterKey())

	backups, err := filepath.Glob(filepath.Join(svc.keyDir, masterKeyFile+".*.bak"))
	require.NoError(t, err)
	assert.Len(t, backups, 1, "old key must be retained")

	// new backups use the fresh key and round-trip fine
	_, err = svc.Create(source, "post-rotate", CreateOptions{})
	require.NoError(t, err)

	_, err = svc.Restore("post-rotate", filepath.Join(t.TempDir(), "out.db"), RestoreOptions{})
	require.NoError(t, err)
}
