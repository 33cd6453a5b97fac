// Package users provides the repository for persistent user account records.
package users

import (
	"context"
	"time"

	"github.com/codementor-ai/auth-service/internal/server/models"
)

// Repository is the keyed store of user records. Implementations must make
// ApplyFailedLogin a conditional (compare-and-swap) write so concurrent
// failed logins for one account never lose an increment.
type Repository interface {
	// Create inserts a new user record. The caller assigns the ID.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the record with the given ID, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByEmail looks a record up by case-insensitive email match,
	// or returns common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ExistsByEmailOrUsername reports whether any record claims the email
	// (case-insensitively) or the username.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// ApplyFailedLogin writes the lock columns computed by
	// models.NextFailedLogin, guarded by the attempts value the snapshot was
	// taken at. Returns false when the guard no longer matches and nothing
	// was written.
	ApplyFailedLogin(ctx context.Context, userID string, expectedAttempts int, upd models.LoginAttemptUpdate) (bool, error)

	// RecordLogin resets the lock accounting and stamps last_login_at /
	// last_active_date after a successful login.
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	// SaveAssessment persists the knowledge assessment outcome.
	SaveAssessment(ctx context.Context, userID string, score int, level models.Level) error
}
