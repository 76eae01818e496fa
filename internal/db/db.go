package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/volunteermd/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store persists users, their favorites, contact messages and refresh runs.
// Opportunities themselves live only in the in-memory cache.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (models.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)

	// ListFavoriteIDs returns opportunity ids, newest first.
	ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
	AddFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) error
	// RemoveFavorite reports whether a favorite was deleted.
	RemoveFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) (bool, error)

	CreateContactMessage(ctx context.Context, msg models.ContactMessage) (models.ContactMessage, error)

	RecordRefreshRun(ctx context.Context, run models.RefreshRun) error
	ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error)

	Close() error
}

// Open connects to the database named by url. postgres:// and postgresql://
// URLs use Postgres; sqlite://path, file: URIs and bare paths use SQLite.
// Migrations are applied before returning.
func Open(ctx context.Context, url string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		pool, err := Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return NewPostgresStore(pool), nil
	}

	return OpenSQLite(ctx, url, logger)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 500:
		return 500
	}
	return limit
}
