package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/password"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
)

// EnsureAdmin creates the default admin account if missing. Admins never
// register through the public endpoint, so this is the only way the first
// one comes into existence.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return fmt.Errorf("admin bootstrap missing required config")
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:           node.Generate().Int64(),
		Email:        email,
		PasswordHash: hashed,
		Name:         "Admin",
		Role:         domain.RoleAdmin,
		TokenVersion: 0,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
