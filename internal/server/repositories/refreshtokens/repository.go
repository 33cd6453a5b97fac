// Package refreshtokens provides the repository for opaque refresh-token
// slots. Each user holds at most models.MaxRefreshTokens concurrently valid
// tokens; the oldest slot is evicted first.
package refreshtokens

import (
	"context"
	"time"

	"github.com/codementor-ai/auth-service/internal/server/models"
)

// Repository manages refresh-token slots. Rotate must be atomic with respect
// to concurrent rotations of the same token: at most one caller consumes a
// given token.
type Repository interface {
	// Create appends a token for userID valid for now+validity, evicting the
	// user's oldest tokens beyond the per-user cap.
	Create(ctx context.Context, userID, token string, validity time.Duration) error

	// Find returns the slot holding the given token, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Rotate replaces oldToken with newToken in place (same slot, renewed
	// expiry). Returns false when oldToken was already consumed or removed.
	Rotate(ctx context.Context, oldToken, newToken string, validity time.Duration) (bool, error)

	// Delete removes a token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}
