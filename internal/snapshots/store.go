package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mcpanel/internal/config"
	"mcpanel/internal/reconciler"
)

// Store keeps the status history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Entry is one recorded status change.
type Entry struct {
	ID         int64                   `json:"id"`
	Status     reconciler.ServerStatus `json:"status"`
	Cause      string                  `json:"cause"`
	RecordedAt time.Time               `json:"recordedAt"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const entryColumns = "id, task_status, server_ip, error_message, desired_status, task_created_at, launch_type, cpu, memory, cause, observed_at, recorded_at"

// Open connects to the cache at cfg.CachePath, creating it when missing.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.CachePath())
}

// OpenPath connects to the cache at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record stores status when it differs from the latest entry. It reports
// whether a row was written.
func (s *Store) Record(ctx context.Context, status reconciler.ServerStatus, cause string) (bool, error) {
	ctx = ensureContext(ctx)
	if status.IsZero() {
		return false, nil
	}
	latest, ok, err := s.Latest(ctx)
	if err != nil {
		return false, err
	}
	if ok && !reconciler.Changed(latest.Status, status) {
		return false, nil
	}

	observed := status.ObservedAt
	if observed.IsZero() {
		observed = s.now()
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO snapshots (task_status, server_ip, error_message, desired_status, task_created_at, launch_type, cpu, memory, cause, observed_at, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(status.TaskStatus.Canonical()),
			nullableString(status.ServerIP),
			nullableString(status.Error),
			nullableString(status.DesiredStatus),
			nullableString(status.CreatedAt),
			nullableString(status.LaunchType),
			nullableString(status.CPU),
			nullableString(status.Memory),
			cause,
			observed.UTC().Format(time.RFC3339Nano),
			s.now().UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("record snapshot: %w", err)
	}
	return true, nil
}

// Latest returns the most recent entry, if any.
func (s *Store) Latest(ctx context.Context) (Entry, bool, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM snapshots ORDER BY id DESC LIMIT 1")
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	return entry, true, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM snapshots ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune keeps the newest keep entries and deletes the rest. It returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	ctx = ensureContext(ctx)
	if keep <= 0 {
		return 0, nil
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, keep)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return removed, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		id            int64
		taskStatus    string
		serverIP      sql.NullString
		errorMessage  sql.NullString
		desiredStatus sql.NullString
		taskCreatedAt sql.NullString
		launchType    sql.NullString
		cpu           sql.NullString
		memory        sql.NullString
		cause         string
		observedRaw   string
		recordedRaw   string
	)
	if err := scanner.Scan(&id, &taskStatus, &serverIP, &errorMessage, &desiredStatus, &taskCreatedAt,
		&launchType, &cpu, &memory, &cause, &observedRaw, &recordedRaw); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID: id,
		Status: reconciler.ServerStatus{
			TaskStatus:    reconciler.TaskStatus(taskStatus),
			ServerIP:      serverIP.String,
			Error:         errorMessage.String,
			DesiredStatus: desiredStatus.String,
			CreatedAt:     taskCreatedAt.String,
			LaunchType:    launchType.String,
			CPU:           cpu.String,
			Memory:        memory.String,
		},
		Cause: cause,
	}
	if observed, err := time.Parse(time.RFC3339Nano, observedRaw); err == nil {
		entry.Status.ObservedAt = observed
	}
	if recorded, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
		entry.RecordedAt = recorded
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
