// Package store persists booking attempts so a caller can see which phase a
// booking reached and why it stopped.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Store is the attempt ledger used by the booking workflow.
type Store interface {
	CreateAttempt(ctx context.Context, a *models.BookingAttempt) error
	UpdateAttempt(ctx context.Context, a *models.BookingAttempt) error
	GetAttempt(ctx context.Context, id string) (*models.BookingAttempt, error)
	LatestAttempt(ctx context.Context) (*models.BookingAttempt, error)
	ListAttempts(ctx context.Context, limit int) ([]models.BookingAttempt, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS booking_attempts (
			attempt_id TEXT PRIMARY KEY,
			train_number TEXT NOT NULL,
			quota TEXT NOT NULL,
			class TEXT NOT NULL,
			journey_date TEXT NOT NULL,
			passengers INTEGER NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			error_kind TEXT,
			warnings TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_created ON booking_attempts(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAttempt inserts a new attempt.
func (s *SQLiteStore) CreateAttempt(ctx context.Context, a *models.BookingAttempt) error {
	warnings, _ := json.Marshal(a.Warnings)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO booking_attempts
			(attempt_id, train_number, quota, class, journey_date, passengers, phase, status, error, error_kind, warnings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TrainNumber, a.Quota, a.Class, a.JourneyDate, a.Passengers,
		string(a.Phase), string(a.Status), a.Error, a.ErrorKind, string(warnings),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// UpdateAttempt stores the attempt's phase, status, error and warnings.
func (s *SQLiteStore) UpdateAttempt(ctx context.Context, a *models.BookingAttempt) error {
	a.UpdatedAt = time.Now()
	warnings, _ := json.Marshal(a.Warnings)
	res, err := s.db.ExecContext(ctx,
		`UPDATE booking_attempts SET phase = ?, status = ?, error = ?, error_kind = ?, warnings = ?, updated_at = ?
		 WHERE attempt_id = ?`,
		string(a.Phase), string(a.Status), a.Error, a.ErrorKind, string(warnings), a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "store.update", "booking attempt %s not found", a.ID)
	}
	return nil
}

const attemptColumns = `attempt_id, train_number, quota, class, journey_date, passengers, phase, status, error, error_kind, warnings, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*models.BookingAttempt, error) {
	var (
		a                   models.BookingAttempt
		phase, status       string
		errMsg, errKind     sql.NullString
		warnings            sql.NullString
		createdAt, updateAt time.Time
	)
	if err := row.Scan(&a.ID, &a.TrainNumber, &a.Quota, &a.Class, &a.JourneyDate, &a.Passengers,
		&phase, &status, &errMsg, &errKind, &warnings, &createdAt, &updateAt); err != nil {
		return nil, err
	}
	a.Phase = models.Phase(phase)
	a.Status = models.AttemptStatus(status)
	a.Error = errMsg.String
	a.ErrorKind = errKind.String
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &a.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	a.CreatedAt = createdAt.Local()
	a.UpdatedAt = updateAt.Local()
	return &a, nil
}

// GetAttempt retrieves an attempt by ID.
func (s *SQLiteStore) GetAttempt(ctx context.Context, id string) (*models.BookingAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM booking_attempts WHERE attempt_id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "store.get", "booking attempt %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return a, nil
}

// LatestAttempt returns the most recently created attempt.
func (s *SQLiteStore) LatestAttempt(ctx context.Context) (*models.BookingAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM booking_attempts ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "store.latest", "no booking has been started")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return a, nil
}

// ListAttempts returns the newest attempts first.
func (s *SQLiteStore) ListAttempts(ctx context.Context, limit int) ([]models.BookingAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM booking_attempts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]models.BookingAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
