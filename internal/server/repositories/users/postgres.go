package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
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

const userColumns = `id, email, username, password_hash, learning_level,
		preferences, completed_modules, current_language, streak_days,
		total_interactions, last_active_date, knowledge_assessment_score,
		email_verified, last_login_at, login_attempts, lock_until,
		created_at, updated_at`

// Create inserts a new user record. Emails are stored lowercased so the
// unique index enforces case-insensitive uniqueness.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return nil, fmt.Errorf("error marshalling preferences: %w", err)
	}
	modules := user.Progress.CompletedModules
	if modules == nil {
		modules = []string{}
	}
	modulesJSON, err := json.Marshal(modules)
	if err != nil {
		return nil, fmt.Errorf("error marshalling completed modules: %w", err)
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, learning_level,
			preferences, completed_modules, current_language, streak_days,
			total_interactions, last_active_date, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		user.ID, strings.ToLower(user.Email), user.Username, user.PasswordHash,
		user.LearningLevel, prefs, modulesJSON, user.Progress.CurrentLanguage,
		user.Progress.StreakDays, user.Progress.TotalInteractions,
		user.Progress.LastActiveDate, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	return user, nil
}

// GetByID returns the record with the given ID, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks a record up by case-insensitive email match.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByEmailOrUsername reports whether the email or username is taken.
func (r *PostgresRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE lower(email) = lower($1) OR username = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// ApplyFailedLogin writes the computed lock transition guarded by the
// login_attempts value the snapshot was read at. A concurrent writer that
// got there first leaves the guard stale and the update applies nothing.
func (r *PostgresRepository) ApplyFailedLogin(ctx context.Context, userID string, expectedAttempts int, upd models.LoginAttemptUpdate) (bool, error) {
	query := `
		UPDATE users
		SET login_attempts = $3, lock_until = $4, updated_at = now()
		WHERE id = $1 AND login_attempts = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, expectedAttempts, upd.Attempts, nullableTime(upd.LockUntil))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

// RecordLogin clears the lock accounting and stamps the login time.
func (r *PostgresRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	query := `
		UPDATE users
		SET login_attempts = 0, lock_until = NULL,
			last_login_at = $2, last_active_date = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SaveAssessment persists the assessment score and the recommended level.
func (r *PostgresRepository) SaveAssessment(ctx context.Context, userID string, score int, level models.Level) error {
	query := `
		UPDATE users
		SET knowledge_assessment_score = $2, learning_level = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, score, level); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	var (
		user        models.User
		prefs       []byte
		modules     []byte
		score       sql.NullInt64
		lastLoginAt sql.NullTime
		lockUntil   sql.NullTime
	)

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.LearningLevel, &prefs, &modules, &user.Progress.CurrentLanguage,
		&user.Progress.StreakDays, &user.Progress.TotalInteractions,
		&user.Progress.LastActiveDate, &score, &user.EmailVerified,
		&lastLoginAt, &user.LoginAttempts, &lockUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
		return nil, fmt.Errorf("error unmarshalling preferences: %w", err)
	}
	if err := json.Unmarshal(modules, &user.Progress.CompletedModules); err != nil {
		return nil, fmt.Errorf("error unmarshalling completed modules: %w", err)
	}

	if score.Valid {
		v := int(score.Int64)
		user.Progress.KnowledgeAssessmentScore = &v
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}
	if lockUntil.Valid {
		t := lockUntil.Time
		user.LockUntil = &t
	}

	return &user, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
