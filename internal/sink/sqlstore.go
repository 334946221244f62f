package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fragmenter/internal/config"
	"fragmenter/internal/contenthash"
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	connectTimeout          = 10 * time.Second
)

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string
}

// Open connects to the configured backend and ensures the artifact table
// exists with the expected columns.
func Open(ctx context.Context, cfg config.Sink) (*SQLStore, error) {
	d, ok := lookupDialect(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported sink driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sink dsn is empty")
	}
	table := cfg.Table
	if table == "" {
		table = "fragments_bytea"
	}

	if d.name == config.DriverSQLite && !strings.HasPrefix(cfg.DSN, "file:") && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("ensure sqlite directory: %w", err)
		}
	}

	db, err := sql.Open(d.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.name, err)
	}

	pingCtx, cancel := context.WithTimeout(ensureContext(ctx), connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s db: %w", d.name, err)
	}

	if d.name == config.DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(pingCtx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	store := &SQLStore{
		db:      db,
		dialect: d,
		table:   qualifiedTable(cfg.Schema, table),
	}
	if err := store.initSchema(pingCtx, cfg.Schema, table); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// ErrSchemaMismatch indicates an existing table lacks the expected columns.
var ErrSchemaMismatch = errors.New("schema mismatch")

func (s *SQLStore) initSchema(ctx context.Context, schemaName, table string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.ddl(schemaName, table)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	probe := fmt.Sprintf(
		"SELECT id, filename, file_hash, fragment_data, file_size_bytes, ifc_source_file, conversion_metadata, created_at FROM %s WHERE 1 = 0",
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, probe)
	if err != nil {
		return fmt.Errorf("%w: table %s: %w", ErrSchemaMismatch, s.table, err)
	}
	return rows.Close()
}

// Driver returns the backend name.
func (s *SQLStore) Driver() string { return s.dialect.name }

// Table returns the qualified table name.
func (s *SQLStore) Table() string { return s.table }

// Exists reports whether hash is already stored.
func (s *SQLStore) Exists(ctx context.Context, hash contenthash.Hash) (bool, error) {
	ctx = ensureContext(ctx)
	query := s.dialect.rebind(fmt.Sprintf("SELECT 1 FROM %s WHERE file_hash = ? LIMIT 1", s.table))
	var one int
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, hash.String()).Scan(&one)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert stores rec. A unique-constraint violation on the hash is reported as
// ErrDuplicate.
func (s *SQLStore) Insert(ctx context.Context, rec Record) error {
	ctx = ensureContext(ctx)
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var createdArg any = created.UTC()
	if s.dialect.name == config.DriverSQLite {
		createdArg = created.UTC().Format(time.RFC3339Nano)
	}

	query := s.dialect.rebind(fmt.Sprintf(
		"INSERT INTO %s (filename, file_hash, fragment_data, file_size_bytes, ifc_source_file, conversion_metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.table,
	))
	err = s.retry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			rec.Filename,
			rec.Hash.String(),
			rec.Data,
			rec.SizeBytes,
			nullString(rec.SourceName),
			metadata,
			createdArg,
		)
		return execErr
	})
	if err != nil && s.dialect.isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.Hash)
	}
	return err
}

// Get returns the record for hash including its fragment bytes.
func (s *SQLStore) Get(ctx context.Context, hash contenthash.Hash) (*Record, error) {
	ctx = ensureContext(ctx)
	query := s.dialect.rebind(fmt.Sprintf(
		"SELECT id, filename, file_hash, file_size_bytes, ifc_source_file, conversion_metadata, created_at, fragment_data FROM %s WHERE file_hash = ?",
		s.table,
	))
	var rec *Record
	err := s.retry(ctx, func() error {
		var scanErr error
		rec, scanErr = scanRecord(s.db.QueryRowContext(ctx, query, hash.String()), true)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns record headers, newest first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	ctx = ensureContext(ctx)
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	query := s.dialect.rebind(fmt.Sprintf(
		"SELECT id, filename, file_hash, file_size_bytes, ifc_source_file, conversion_metadata, created_at FROM %s ORDER BY id DESC LIMIT ? OFFSET ?",
		s.table,
	))
	var records []Record
	err := s.retry(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, query, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows, false)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stats returns the record count, total fragment bytes and newest timestamp.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	query := fmt.Sprintf("SELECT COUNT(1), COALESCE(SUM(file_size_bytes), 0) FROM %s", s.table)
	var stats Stats
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query).Scan(&stats.Records, &stats.TotalBytes)
	})
	if err != nil {
		return Stats{}, err
	}
	if stats.Records == 0 {
		return stats, nil
	}
	latest, err := s.List(ctx, ListOptions{Limit: 1})
	if err != nil {
		return Stats{}, err
	}
	if len(latest) > 0 {
		stats.LastCreatedAt = latest[0].CreatedAt
	}
	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) retry(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !s.dialect.retryable(lastErr) || attempt == busyRetryAttempts-1 {
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

// unavailable reports whether err means the backend could not be reached, as
// opposed to rejecting a write.
func (s *SQLStore) unavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if strings.Contains(err.Error(), "database is closed") {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return s.dialect.isUnavailable(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, withData bool) (*Record, error) {
	var (
		rec      Record
		hash     string
		source   sql.NullString
		metadata sql.NullString
		created  string
	)
	dest := []any{&rec.ID, &rec.Filename, &hash, &rec.SizeBytes, &source, &metadata, &created}
	if withData {
		dest = append(dest, &rec.Data)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Hash = contenthash.Hash(hash)
	rec.SourceName = source.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", hash, err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}

func encodeMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
