package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/david/volunteermd/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database named by url and
// applies migrations. ":memory:" databases are limited to one connection so
// every query sees the same database.
func OpenSQLite(ctx context.Context, url string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn, memory := sqliteDSN(url)
	if !memory && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	params := "_foreign_keys=on&_busy_timeout=5000"
	if !memory {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	conn, err := sql.Open("sqlite3", dsn+sep+params)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applySQLiteMigrations(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{db: conn}, nil
}

func sqliteDSN(url string) (dsn string, memory bool) {
	dsn = strings.TrimPrefix(url, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	return dsn, dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (models.User, error) {
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintUnique) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower(?)`, email)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id.String())
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT opportunity_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) AddFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (user_id, opportunity_id, created_at) VALUES (?, ?, ?)`,
		userID.String(), opportunityID, time.Now().UTC())
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return ErrNotFound
		}
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFavorite(ctx context.Context, userID uuid.UUID, opportunityID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND opportunity_id = ?`, userID.String(), opportunityID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateContactMessage(ctx context.Context, msg models.ContactMessage) (models.ContactMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_messages (name, email, message, created_at) VALUES (?, ?, ?, ?)`,
		msg.Name, msg.Email, msg.Message, msg.CreatedAt)
	if err != nil {
		return models.ContactMessage{}, fmt.Errorf("insert contact message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return models.ContactMessage{}, err
	}
	return msg, nil
}

func (s *SQLiteStore) RecordRefreshRun(ctx context.Context, run models.RefreshRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (strategy, status, items, sources_ok, sources_failed, rejected, details, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Strategy, run.Status, run.Items, run.SourcesOK, run.SourcesFailed, run.Rejected,
		run.Details, run.StartedAt.UTC(), run.DurationMs)
	if err != nil {
		return fmt.Errorf("insert refresh run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, status, items, sources_ok, sources_failed, rejected, details, started_at, duration_ms
		FROM refresh_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, clampLimit(limit))
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

func isSQLiteConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
