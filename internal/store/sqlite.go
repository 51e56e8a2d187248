package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/diary/internal/diary"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on entries.pinned for filtered page reads
const currentSchemaVersion = 1

// driverName is go-sqlite3 with the contains_fold SQL function registered on
// every connection.
const driverName = "sqlite3_diary"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("contains_fold", diary.ContainsFold, true)
		},
	})
}

// SQLite stores entries in a SQLite database.
type SQLite struct {
	db   *sql.DB
	opts Options
}

var _ Handle = (*SQLite)(nil)

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db, opts: opts.withDefaults()}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using SQLite methods when available.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Create inserts a new entry.
func (s *SQLite) Create(ctx context.Context, content string, pinned bool) (diary.Entry, error) {
	e := diary.Entry{
		Content:   diary.NormalizeContent(content),
		CreatedAt: s.opts.Now().UTC(),
		Pinned:    pinned,
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (content, created_at, pinned)
		VALUES (?, ?, ?)
	`, e.Content, e.CreatedAt.UnixNano(), e.Pinned)
	if err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	e.ID, err = res.LastInsertId()
	if err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// ReadOne returns the entry with the given id or diary.ErrNotFound.
func (s *SQLite) ReadOne(ctx context.Context, id int64) (diary.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, created_at, updated_at, pinned
		FROM entries
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return diary.Entry{}, diary.NotFound(id)
	}
	if err != nil {
		return diary.Entry{}, fmt.Errorf("read entry %d: %w", id, err)
	}
	return e, nil
}

// ReadPage returns one page of entries matching the query.
func (s *SQLite) ReadPage(ctx context.Context, q diary.PageQuery) (diary.Page, error) {
	rq, err := q.Resolve()
	if err != nil {
		return diary.Page{}, err
	}

	where, args := whereClause(rq)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries"+where, args...).Scan(&total); err != nil {
		return diary.Page{}, fmt.Errorf("count entries: %w", err)
	}

	// rq.Sort is one of two constants, never caller text.
	query := fmt.Sprintf(`
		SELECT id, content, created_at, updated_at, pinned
		FROM entries%s
		ORDER BY created_at %s, id %s
		LIMIT ? OFFSET ?
	`, where, rq.Sort, rq.Sort)

	rows, err := s.db.QueryContext(ctx, query, append(args, rq.PerPage, rq.Offset())...)
	if err != nil {
		return diary.Page{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return diary.Page{}, err
	}
	return diary.NewPage(entries, total, rq), nil
}

// Update applies a partial update. An empty patch returns the entry as is.
func (s *SQLite) Update(ctx context.Context, id int64, patch diary.EntryPatch) (diary.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return diary.Entry{}, fmt.Errorf("update entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	current, err := scanEntry(tx.QueryRowContext(ctx, `
		SELECT id, content, created_at, updated_at, pinned
		FROM entries
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return diary.Entry{}, diary.NotFound(id)
	}
	if err != nil {
		return diary.Entry{}, fmt.Errorf("update entry %d: %w", id, err)
	}
	if patch.Empty() {
		return current, nil
	}

	updated := patch.Apply(current, s.opts.Now().UTC())
	if _, err := tx.ExecContext(ctx, `
		UPDATE entries
		SET content = ?, pinned = ?, updated_at = ?
		WHERE id = ?
	`, updated.Content, updated.Pinned, updated.UpdatedAt.UnixNano(), id); err != nil {
		return diary.Entry{}, fmt.Errorf("update entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return diary.Entry{}, fmt.Errorf("update entry %d: commit: %w", id, err)
	}
	return updated, nil
}

// Delete removes an entry or returns diary.ErrNotFound.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if n == 0 {
		return diary.NotFound(id)
	}
	return nil
}

// DumpAll writes every entry to a new file in the dump directory.
func (s *SQLite) DumpAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, updated_at, pinned
		FROM entries
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("dump entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return fmt.Errorf("dump entries: %w", err)
	}

	path, err := writeDump(s.opts, entries)
	if err != nil {
		return err
	}
	s.opts.Logger.Info("entries dumped", "path", path, "count", len(entries))
	return nil
}

// whereClause builds the filter for page reads. The returned clause is
// empty or starts with " WHERE".
func whereClause(q diary.ResolvedQuery) (string, []any) {
	var conds []string
	var args []any

	if q.Pinned != nil {
		conds = append(conds, "pinned = ?")
		args = append(args, *q.Pinned)
	}
	if q.Substring != "" {
		conds = append(conds, "contains_fold(content, ?)")
		args = append(args, q.Substring)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (diary.Entry, error) {
	var (
		e         diary.Entry
		createdAt int64
		updatedAt sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Content, &createdAt, &updatedAt, &e.Pinned); err != nil {
		return diary.Entry{}, err
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	if updatedAt.Valid {
		t := time.Unix(0, updatedAt.Int64).UTC()
		e.UpdatedAt = &t
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]diary.Entry, error) {
	entries := []diary.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_pinned ON entries(pinned, created_at)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
