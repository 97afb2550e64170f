package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/notify"
	pw "github.com/Jitendra7073/HSM-backend-sub001/internal/password"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/token"
)

// AuthService owns the session lifecycle: issuing token pairs, rotating
// refresh tokens, and invalidating sessions.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.RefreshTokenRepository
	resets   repository.ResetTokenRepository
	codec    *token.Codec
	mail     *notify.Dispatcher
	node     *snowflake.Node
	cfg      config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.RefreshTokenRepository,
	resets repository.ResetTokenRepository,
	codec *token.Codec,
	mail *notify.Dispatcher,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		resets:   resets,
		codec:    codec,
		mail:     mail,
		node:     node,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/Jitendra7073/HSM-backend-sub001/internal/service"),
	}
}

// Login authenticates with email and password and opens a new session.
// Unknown accounts and wrong passwords produce the same answer.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, newAuthError(CodeInvalidCredentials, "Wrong email or password.", 400)
		}
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("login lookup: %w", err)
	}

	ok, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, newAuthError(CodeInvalidCredentials, "Wrong email or password.", 400)
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	s.audit("login.success", "user_id", user.ID, "role", user.Role)
	return result, nil
}

// Register creates an account and opens its first session. Welcome and
// admin-notification mails are dispatched off the request path.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	normalized := normalizeEmail(input.Email)
	if _, err := mail.ParseAddress(normalized); err != nil || normalized == "" {
		return AuthResult{}, newAuthError(CodeValidationFailed, "A valid email is required.", 400)
	}
	if err := pw.Validate(input.Password); err != nil {
		return AuthResult{}, newAuthError(CodeValidationFailed,
			"Password must be at least 8 characters and contain a letter and a digit.", 400)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !selfServeRole(role) {
		return AuthResult{}, newAuthError(CodeValidationFailed, "Unknown role.", 400)
	}

	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return AuthResult{}, newAuthError(CodeConflict, "Email already registered.", 409)
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		ID:           s.node.Generate().Int64(),
		Email:        normalized,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		TokenVersion: 0,
	})
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	result, err := s.openSession(ctx, created)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	s.sendWelcome(ctx, created)
	s.audit("register.success", "user_id", created.ID, "role", created.Role)
	return result, nil
}

// Refresh exchanges a valid refresh token for a new pair and rewrites the
// session row in place. Every rejection collapses to the same 401.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if refreshToken == "" {
		return AuthResult{}, errUnauthenticated()
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil || claims.TokenType != token.TypeRefresh {
		return AuthResult{}, errUnauthenticated()
	}

	row, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			span.RecordError(err)
		}
		return AuthResult{}, errUnauthenticated()
	}
	if row.Expired(time.Now()) {
		return AuthResult{}, errUnauthenticated()
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			span.RecordError(err)
		}
		return AuthResult{}, errUnauthenticated()
	}
	if claims.TokenVersion != user.TokenVersion {
		return AuthResult{}, errUnauthenticated()
	}

	access, err := s.codec.IssueAccess(user)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	next, err := s.codec.IssueRefresh(user)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	// Compare-and-swap on the old token string. A concurrent refresh of
	// the same token finds zero rows and fails as unauthenticated instead
	// of resurrecting the session under two different values.
	rotated, err := s.sessions.Rotate(ctx, refreshToken, next, time.Now().Add(s.cfg.RefreshTokenTTL))
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		return AuthResult{}, errUnauthenticated()
	}

	s.audit("refresh.success", "user_id", user.ID)
	return AuthResult{
		AccessToken:  access,
		RefreshToken: next,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		User:         newUserViewModel(user),
	}, nil
}

// Logout closes the session identified by the refresh token. Calling it
// with an unknown or already-removed token still succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.DeleteByToken(ctx, refreshToken); err != nil {
		span.RecordError(err)
		s.log().Warn("logout delete failed", zap.Error(err))
	}
	return nil
}

// LogoutAll closes every session the user owns. The token-version bump
// and the session purge commit together.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutAll")
	defer span.End()

	if err := s.users.InvalidateSessions(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUnauthenticated()
		}
		span.RecordError(err)
		return fmt.Errorf("invalidate sessions: %w", err)
	}

	s.audit("logout_all.success", "user_id", userID)
	return nil
}

// Sessions lists the caller's active sessions.
func (s *AuthService) Sessions(ctx context.Context, userID int64) ([]SessionView, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Sessions")
	defer span.End()

	rows, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now()
	views := make([]SessionView, 0, len(rows))
	for _, row := range rows {
		if row.Expired(now) {
			continue
		}
		views = append(views, SessionView{ID: row.ID, CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt})
	}
	return views, nil
}

// Profile returns the account view for an authenticated user.
func (s *AuthService) Profile(ctx context.Context, userID int64) (UserViewModel, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UserViewModel{}, errUnauthenticated()
		}
		return UserViewModel{}, fmt.Errorf("load profile: %w", err)
	}
	return newUserViewModel(user), nil
}

// UserByID re-reads the account record; the request gate calls this on
// every authenticated request so restriction and role are never stale.
func (s *AuthService) UserByID(ctx context.Context, userID int64) (domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// DecodeToken proxies to the codec for the request gate.
func (s *AuthService) DecodeToken(raw string) (token.Claims, error) {
	return s.codec.Decode(raw)
}

func (s *AuthService) openSession(ctx context.Context, user domain.User) (AuthResult, error) {
	access, err := s.codec.IssueAccess(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.IssueRefresh(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	if _, err := s.sessions.Create(ctx, domain.RefreshToken{
		ID:        s.node.Generate().Int64(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return AuthResult{}, fmt.Errorf("persist session: %w", err)
	}

	return AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		User:         newUserViewModel(user),
	}, nil
}

func (s *AuthService) sendWelcome(ctx context.Context, user domain.User) {
	if s.mail == nil {
		return
	}
	s.mail.Enqueue(notify.Message{
		To:      user.Email,
		Subject: "Welcome to HSM",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account has been created.\n", displayName(user)),
	})

	if user.Role != domain.RoleProvider {
		return
	}
	admins, err := s.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		s.log().Warn("list admins for provider notification failed", zap.Error(err))
		return
	}
	for _, admin := range admins {
		s.mail.Enqueue(notify.Message{
			To:      admin.Email,
			Subject: "New provider registration",
			Body:    fmt.Sprintf("Provider %s (%s) just registered.\n", displayName(user), user.Email),
		})
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func selfServeRole(role domain.Role) bool {
	for _, r := range domain.SelfServeRoles {
		if r == role {
			return true
		}
	}
	return false
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func displayName(user domain.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}

func randomString(n int) string {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
