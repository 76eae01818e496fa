package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/volunteermd/internal/models"
)

// Connect opens and pings a pgx pool.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	return pool, nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isPgCode(err, "23505") {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT opportunity_id FROM favorites WHERE user_id = $1 ORDER BY created_at DESC, opportunity_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan favorites: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *PostgresStore) AddFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, opportunity_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, opportunity_id) DO NOTHING`,
		userID, opportunityID, time.Now().UTC())
	if err != nil {
		if isPgCode(err, "23503") {
			return ErrNotFound
		}
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND opportunity_id = $2`, userID, opportunityID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CreateContactMessage(ctx context.Context, msg models.ContactMessage) (models.ContactMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contact_messages (name, email, message, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		msg.Name, msg.Email, msg.Message, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return models.ContactMessage{}, fmt.Errorf("insert contact message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) RecordRefreshRun(ctx context.Context, run models.RefreshRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_runs (strategy, status, items, sources_ok, sources_failed, rejected, details, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.Strategy, run.Status, run.Items, run.SourcesOK, run.SourcesFailed, run.Rejected,
		run.Details, run.StartedAt.UTC(), run.DurationMs)
	if err != nil {
		return fmt.Errorf("insert refresh run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, strategy, status, items, sources_ok, sources_failed, rejected, details, started_at, duration_ms
		FROM refresh_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query refresh runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RefreshRun{}
	for rows.Next() {
		var r models.RefreshRun
		if err := rows.Scan(&r.ID, &r.Strategy, &r.Status, &r.Items, &r.SourcesOK, &r.SourcesFailed,
			&r.Rejected, &r.Details, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
