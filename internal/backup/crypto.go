package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keySize is the AES-256 key length in bytes.
	keySize = 32
	// nonceSize is the GCM nonce length in bytes.
	nonceSize = 12
	// saltSize is the PBKDF2 salt length in bytes.
	saltSize = 16
	// pbkdf2Iterations is the PBKDF2-HMAC-SHA256 iteration count.
	pbkdf2Iterations = 100_000

	// masterKeyFile is the master key file name inside the key directory.
	masterKeyFile = "master.key"
	// keyDirMode restricts the key directory to the service user.
	keyDirMode = 0o700
	// keyFileMode restricts key files to the service user.
	keyFileMode = 0o600
)

// loadOrCreateMasterKey returns the master key, generating it on first use.
// The key lives in a restricted directory and is reused across backups.
func loadOrCreateMasterKey(keyDir string) ([]byte, error) {
	if err := os.MkdirAll(keyDir, keyDirMode); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	keyPath := filepath.Join(keyDir, masterKeyFile)

	key, err := os.ReadFile(keyPath)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("master key has wrong length %d", len(key))
		}

		return key, nil
	}

	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.WriteFile(keyPath, key, keyFileMode); err != nil {
		return nil, fmt.Errorf("failed to store master key: %w", err)
	}

	return key, nil
}

// rotateMasterKey generates a fresh master key, keeping the previous one as a
// timestamped backup. Historical backups are not re-encrypted: restoring them
// requires the retained old key.
func rotateMasterKey(keyDir string) error {
	keyPath := filepath.Join(keyDir, masterKeyFile)

	if old, err := os.ReadFile(keyPath); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", keyPath, time.Now().UTC().Format("20060102T150405Z"))
		if err := os.WriteFile(backupPath, old, keyFileMode); err != nil {
			return fmt.Errorf("failed to back up old master key: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read master key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.WriteFile(keyPath, key, keyFileMode); err != nil {
		return fmt.Errorf("failed to store master key: %w", err)
	}

	return nil
}

// deriveKey derives an AES-256 key from a password and salt using
// PBKDF2-HMAC-SHA256. Used by the password-protected backup path; the default
// flow encrypts with the master key directly.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
}

// seal encrypts plaintext with AES-256-GCM and returns the encrypted package
// salt ∥ nonce ∥ ciphertext+tag. The salt is carried in the package for the
// password-derived key path; the metadata JSON is bound as additional
// authenticated data, so a swapped metadata block fails decryption.
func seal(key, salt, plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)

	pkg := make([]byte, 0, saltSize+nonceSize+len(sealed))
	pkg = append(pkg, salt...)
	pkg = append(pkg, nonce...)
	pkg = append(pkg, sealed...)

	return pkg, nil
}

// open decrypts an encrypted package produced by seal. Any tampering with the
// ciphertext or the bound metadata surfaces as ErrInvalidBackup.
func open(key, pkg, aad []byte) ([]byte, error) {
	if len(pkg) < saltSize+nonceSize+1 {
		return nil, fmt.Errorf("%w: encrypted package too short", ErrInvalidBackup)
	}

	nonce := pkg[saltSize : saltSize+nonceSize]
	ciphertext := pkg[saltSize+nonceSize:]

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrInvalidBackup)
	}

	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise GCM: %w", err)
	}

	return aead, nil
}

// packageSalt returns the salt prefix of an encrypted package, for the
// password-derived key path.
func packageSalt(pkg []byte) []byte {
	return pkg[:saltSize]
}
