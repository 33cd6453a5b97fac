package refreshtokens

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/server/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository, used in tests
// and local development. Rotation and eviction behave like the Postgres
// implementation: the rotated slot keeps its position, and appending beyond
// the cap drops the oldest slots.
type MemoryRepository struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken
	seq     int64
}

// NewMemoryRepository returns an empty in-memory refresh-token store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byToken: make(map[string]*models.RefreshToken)}
}

func (r *MemoryRepository) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := time.Now()
	r.byToken[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: now.Add(time.Duration(r.seq)), // strictly ordered even within one tick
		ExpiresAt: now.Add(validity),
	}

	owned := make([]*models.RefreshToken, 0, len(r.byToken))
	for _, rt := range r.byToken {
		if rt.UserID == userID {
			owned = append(owned, rt)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })
	for len(owned) > models.MaxRefreshTokens {
		delete(r.byToken, owned[0].Token)
		owned = owned[1:]
	}
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (r *MemoryRepository) Rotate(ctx context.Context, oldToken, newToken string, validity time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.byToken[oldToken]
	if !ok {
		return false, nil
	}
	delete(r.byToken, oldToken)
	rt.Token = newToken
	rt.ExpiresAt = time.Now().Add(validity)
	r.byToken[newToken] = rt
	return true, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byToken, token)
	return nil
}

// CountForUser reports how many token slots a user currently holds.
// Test helper.
func (r *MemoryRepository) CountForUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rt := range r.byToken {
		if rt.UserID == userID {
			n++
		}
	}
	return n
}
