// Package repomanager vends repository implementations bound to a database
// handle, so services can run several repositories against one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/codementor-ai/auth-service/internal/dbx"
	"github.com/codementor-ai/auth-service/internal/server/repositories/refreshtokens"
	"github.com/codementor-ai/auth-service/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to the provided DBTX
// (either the pool or an open transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
