package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/notify"
	pw "github.com/Jitendra7073/HSM-backend-sub001/internal/password"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
)

const resetTokenBytes = 32

// RequestPasswordReset issues a one-time reset capability and mails it to
// the account owner. The raw token is also returned to the caller; the
// HTTP layer includes it in the response body (kept for environments
// without working mail delivery).
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.RequestPasswordReset")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", newAuthError(CodeNotFound, "No account exists for that email.", 400)
		}
		span.RecordError(err)
		return "", fmt.Errorf("reset lookup: %w", err)
	}

	// A bare random string, not a signed blob: the store row is the sole
	// authority on validity.
	raw := randomString(resetTokenBytes)
	if err := s.resets.Create(ctx, domain.ResetToken{
		Token:     raw,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.cfg.ResetTokenTTL),
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("persist reset token: %w", err)
	}

	if s.mail != nil {
		s.mail.Enqueue(notify.Message{
			To:      user.Email,
			Subject: "Reset your HSM password",
			Body: fmt.Sprintf("Hi %s,\n\nUse this token to reset your password within %d minutes: %s\n",
				displayName(user), int(s.cfg.ResetTokenTTL.Minutes()), raw),
		})
	}

	s.audit("password_reset.requested", "user_id", user.ID)
	return raw, nil
}

// ResetPassword redeems a reset token. Redemption is single-use: the
// token row is deleted whether the attempt succeeds or arrives expired.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	if rawToken == "" {
		return newAuthError(CodeInvalidToken, "Invalid Token", 400)
	}

	reset, err := s.resets.GetByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newAuthError(CodeInvalidToken, "Invalid Token", 400)
		}
		span.RecordError(err)
		return fmt.Errorf("reset token lookup: %w", err)
	}

	if reset.Expired(time.Now()) {
		if err := s.resets.Delete(ctx, rawToken); err != nil {
			s.log().Warn("delete expired reset token failed", zap.Error(err))
		}
		return newAuthError(CodeTokenExpired, "Token is expired", 400)
	}

	if err := pw.Validate(newPassword); err != nil {
		return newAuthError(CodeValidationFailed,
			"Password must be at least 8 characters and contain a letter and a digit.", 400)
	}

	hashed, err := pw.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	// New hash, token-version bump, and session purge commit together, so
	// a refresh racing the reset cannot keep an old session alive.
	if err := s.users.UpdatePassword(ctx, reset.UserID, hashed); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.resets.Delete(ctx, rawToken); err != nil {
		s.log().Warn("delete redeemed reset token failed", zap.Error(err))
	}

	s.audit("password_reset.success", "user_id", reset.UserID)
	return nil
}
