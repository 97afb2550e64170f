package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

const userColumns = `id, email, password_hash, name, phone, role, token_version, is_restricted, created_at, updated_at`

// PostgresUserRepo implements UserRepository on a pgx pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr("get user by email", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr("get user by id", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, password_hash, name, phone, role, token_version, is_restricted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Phone,
		string(user.Role),
		user.TokenVersion,
		user.IsRestricted,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users by role: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, token_version = token_version + 1, updated_at = NOW() WHERE id = $1`,
			userID, passwordHash,
		)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		return nil
	})
}

func (r *PostgresUserRepo) InvalidateSessions(ctx context.Context, userID int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("bump token version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		return nil
	})
}

func (r *PostgresUserRepo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository on a pgx pool.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, user_id, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token, expires_at, created_at`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL, token.ID, token.UserID, token.Token, token.ExpiresAt)
	created, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return created, nil
}

func (r *PostgresRefreshTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE token = $1`,
		token,
	)
	found, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapErr("get refresh token", err)
	}
	return found, nil
}

// Rotate is the compare-and-swap at the heart of the rotation invariant:
// the UPDATE only matches while the old string is still the row's current
// value, so of two concurrent refreshes exactly one wins.
func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET token = $2, expires_at = $3 WHERE token = $1`,
		oldToken, newToken, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRefreshTokenRepo) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRefreshTokenRepo) ListByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("list refresh tokens: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&role,
		&u.TokenVersion,
		&u.IsRestricted,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func scanRefreshToken(row pgx.Row) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
