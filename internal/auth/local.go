package auth

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campus-sms/campus-sms/internal/audit"
	"github.com/campus-sms/campus-sms/internal/db/models"
)

const (
	// maxFailedLogins is the number of consecutive failures before a lockout.
	maxFailedLogins = 5
	// lockoutWindow is how long an account stays locked after too many failures.
	lockoutWindow = 15 * time.Minute
)

// ClientInfo carries the request context stamped on login audit records.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// Authenticate verifies an email/password pair against the local user store.
// Failed attempts increment the account's failure counter and eventually open
// a lockout window. Every attempt is audited; login audit rows are written on
// the plain handle so they survive independent of any business transaction.
func (s *Service) Authenticate(email, password string, client ClientInfo) (*models.User, error) {
	var user models.User

	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.auditLoginFailure(nil, email, client, ErrUserNotFound)
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	now := time.Now().UTC()

	if user.Locked(now) {
		s.auditLoginFailure(&user, email, client, ErrAccountLocked)
		return nil, ErrAccountLocked
	}

	if !user.IsActive {
		s.auditLoginFailure(&user, email, client, ErrUserAccountDisabled)
		return nil, ErrUserAccountDisabled
	}

	if !user.VerifyPassword(password) {
		user.FailedLogins++
		if user.FailedLogins >= maxFailedLogins {
			lockedUntil := now.Add(lockoutWindow)
			user.LockedUntil = &lockedUntil
			user.FailedLogins = 0
		}

		if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{
				"failed_logins": user.FailedLogins,
				"locked_until":  user.LockedUntil,
			}).Error; err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to record login failure")
		}

		s.auditLoginFailure(&user, email, client, ErrInvalidPassword)

		return nil, ErrInvalidPassword
	}

	if user.FailedLogins != 0 || user.LockedUntil != nil {
		user.FailedLogins = 0
		user.LockedUntil = nil

		if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"failed_logins": 0, "locked_until": nil}).Error; err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to reset login counters")
		}
	}

	if err := audit.Record(s.db, audit.Entry{
		Action:     models.AuditActionLogin,
		Resource:   "user",
		ResourceID: email,
		User:       &user,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Success:    true,
		RequestID:  client.RequestID,
	}); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to audit login")
	}

	return &user, nil
}

func (s *Service) auditLoginFailure(user *models.User, email string, client ClientInfo, reason error) {
	if err := audit.Record(s.db, audit.Entry{
		Action:       models.AuditActionLoginFailed,
		Resource:     "user",
		ResourceID:   email,
		User:         user,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		Success:      false,
		ErrorMessage: reason.Error(),
		RequestID:    client.RequestID,
	}); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to audit login failure")
	}
}
