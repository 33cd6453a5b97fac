package repomanager

import (
	"context"
	"database/sql"

	"github.com/codementor-ai/auth-service/internal/dbx"
	"github.com/codementor-ai/auth-service/internal/server/repositories/refreshtokens"
	"github.com/codementor-ai/auth-service/internal/server/repositories/users"
)

// MemoryRepositoryManager vends the in-memory repositories. The DBTX
// argument is ignored; the stores are bound at construction. Used in tests.
type MemoryRepositoryManager struct {
	users         *users.MemoryRepository
	refreshTokens *refreshtokens.MemoryRepository
}

// NewMemoryRepositoryManager constructs a manager over fresh in-memory stores.
func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:         users.NewMemoryRepository(),
		refreshTokens: refreshtokens.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

// RefreshTokenStore exposes the concrete in-memory token store for test
// assertions.
func (m *MemoryRepositoryManager) RefreshTokenStore() *refreshtokens.MemoryRepository {
	return m.refreshTokens
}
