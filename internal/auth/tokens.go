package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/db/models"
)

const (
	// refreshTokenBytes is the entropy of an issued refresh token.
	refreshTokenBytes = 32
	// defaultRefreshTokenDays is the token lifetime when the operator sets nothing.
	defaultRefreshTokenDays = 7
)

// ErrInvalidToken is returned when a refresh token is unknown, expired or revoked.
var ErrInvalidToken = errors.New("invalid or expired refresh token")

// RefreshTokenLifetime returns the configured refresh token lifetime.
// REFRESH_TOKEN_EXPIRE_DAYS overrides the default; a non-positive value means
// tokens are already expired on issue.
func RefreshTokenLifetime() time.Duration {
	raw := os.Getenv("REFRESH_TOKEN_EXPIRE_DAYS")
	if raw == "" {
		return defaultRefreshTokenDays * 24 * time.Hour
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return defaultRefreshTokenDays * 24 * time.Hour
	}

	return time.Duration(days) * 24 * time.Hour
}

// IssueRefreshToken creates a refresh token for the user and returns its
// plaintext. Only the SHA-256 digest is persisted.
func (s *Service) IssueRefreshToken(user *models.User) (string, *models.RefreshToken, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	row := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plaintext),
		ExpiresAt: time.Now().UTC().Add(RefreshTokenLifetime()),
	}

	if err := s.db.Create(&row).Error; err != nil {
		return "", nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return plaintext, &row, nil
}

// ValidateRefreshToken resolves a plaintext refresh token to its user.
// Unknown, expired and revoked tokens all return ErrInvalidToken.
func (s *Service) ValidateRefreshToken(plaintext string) (*models.User, error) {
	var row models.RefreshToken

	err := s.db.Where("token_hash = ?", hashToken(plaintext)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, err
	}

	if !row.Valid(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.First(&user, row.UserID).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// RevokeRefreshToken marks a token as revoked. Revoking an unknown token is a
// no-op.
func (s *Service) RevokeRefreshToken(plaintext string) error {
	now := time.Now().UTC()

	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(plaintext)).
		Update("revoked_at", now).Error
}

func hashToken(plaintext string) string {
	digest := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(digest[:])
}
