package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/dbx"
	"github.com/codementor-ai/auth-service/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new token slot and evicts the user's oldest slots beyond
// the cap. Run it inside a transaction when the insert must be atomic with
// other account updates.
func (r *PostgresRepository) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, token, userID, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}

	evict := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND token NOT IN (
			SELECT token FROM refresh_tokens
			WHERE user_id = $1
			ORDER BY created_at DESC, token
			LIMIT $2
		)
	`
	if _, err := r.db.ExecContext(ctx, evict, userID, models.MaxRefreshTokens); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

// Find returns the slot for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT token, user_id, created_at, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`
	rt := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&rt.Token, &rt.UserID, &rt.CreatedAt, &rt.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// Rotate swaps the token value in place. The row keeps its created_at, so
// the slot keeps its position in the user's list. Rows-affected zero means
// another caller consumed the token first.
func (r *PostgresRepository) Rotate(ctx context.Context, oldToken, newToken string, validity time.Duration) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $2, expires_at = $3
		WHERE token = $1
	`
	res, err := r.db.ExecContext(ctx, query, oldToken, newToken, time.Now().Add(validity))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a refresh token by its token string.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
