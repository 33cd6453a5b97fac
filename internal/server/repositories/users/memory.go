package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/server/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository, used in tests
// and local development. The compare-and-swap semantics of ApplyFailedLogin
// match the Postgres implementation.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

// NewMemoryRepository returns an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	if u.LockUntil != nil {
		t := *u.LockUntil
		c.LockUntil = &t
	}
	if u.Progress.KnowledgeAssessmentScore != nil {
		v := *u.Progress.KnowledgeAssessmentScore
		c.Progress.KnowledgeAssessmentScore = &v
	}
	c.Preferences.PreferredLanguages = append([]models.SupportedLanguage(nil), u.Preferences.PreferredLanguages...)
	c.Progress.CompletedModules = append([]string(nil), u.Progress.CompletedModules...)
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	r.byID[user.ID] = cloneUser(user)
	return user, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ApplyFailedLogin(ctx context.Context, userID string, expectedAttempts int, upd models.LoginAttemptUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || u.LoginAttempts != expectedAttempts {
		return false, nil
	}
	u.LoginAttempts = upd.Attempts
	u.LockUntil = upd.LockUntil
	u.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	t := at
	u.LastLoginAt = &t
	u.Progress.LastActiveDate = at
	u.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) SaveAssessment(ctx context.Context, userID string, score int, level models.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil
	}
	v := score
	u.Progress.KnowledgeAssessmentScore = &v
	u.LearningLevel = level
	u.UpdatedAt = time.Now()
	return nil
}
