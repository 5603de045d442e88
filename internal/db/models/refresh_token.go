package models

import "time"

// RefreshToken represents an issued refresh token. Only a SHA-256 digest of
// the token is stored; the plaintext exists solely in the issuing response.
type RefreshToken struct {
	// ID is the unique identifier for the token row.
	ID uint64 `gorm:"primaryKey"`
	// UserID is the account the token was issued to.
	UserID uint64 `gorm:"not null;index"`
	// User is the associated user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// TokenHash is the hex-encoded SHA-256 digest of the token.
	TokenHash string `gorm:"unique;size:64;not null"`
	// ExpiresAt is when the token stops being accepted (UTC).
	ExpiresAt time.Time `gorm:"not null"`
	// RevokedAt is set when the token is explicitly revoked.
	RevokedAt *time.Time
	// CreatedAt is the timestamp when the token was issued (managed by GORM).
	CreatedAt time.Time
}

// Valid reports whether the token is accepted at the given instant.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TableName specifies the database table name for the RefreshToken model.
// This overrides GORM's default pluralized table naming.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
