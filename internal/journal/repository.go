package journal

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/blackmichael/agent-manager/internal/domain"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

var placeholder = regexp.MustCompile(`\$\d+`)

// Repository implements domain.JournalRepository on PostgreSQL or SQLite.
type Repository struct {
	db      *sql.DB
	dialect dialect
}

var _ domain.JournalRepository = (*Repository)(nil)

// Open connects to the journal database named by dsn, verifies the
// connection and creates the schema. postgres:// and postgresql:// URLs use
// Postgres; sqlite://<path> (or sqlite://:memory:) uses SQLite. The caller
// should call Close when the repository is no longer needed.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	var (
		driver string
		source string
		d      dialect
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver, source, d = "postgres", dsn, dialectPostgres
	case strings.HasPrefix(dsn, "sqlite://"):
		driver, source, d = "sqlite", strings.TrimPrefix(dsn, "sqlite://"), dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported journal dsn %q", dsn)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if d == dialectSQLite {
		// one connection so :memory: databases are shared and writes serialize
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	idColumn := "id BIGSERIAL PRIMARY KEY"
	if r.dialect == dialectSQLite {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS command_journal (
			` + idColumn + `,
			command     TEXT   NOT NULL,
			target      TEXT   NOT NULL DEFAULT '',
			outcome     TEXT   NOT NULL,
			message     TEXT   NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL,
			created_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_command_journal_created_at
			ON command_journal (created_at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

// Record inserts one command outcome.
func (r *Repository) Record(ctx context.Context, entry domain.JournalEntry) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO command_journal (command, target, outcome, message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`),
		string(entry.Command),
		entry.Target,
		string(entry.Outcome),
		entry.Message,
		entry.Duration.Milliseconds(),
		entry.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List returns entries newest first, paginated by cursor.
// The cursor format is "createdAt::id" (unix millis::id).
func (r *Repository) List(ctx context.Context, limit int, cursor string) ([]domain.JournalEntry, string, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if cursor != "" {
		cursorMillis, cursorID, parseErr := parseCursor(cursor)
		if parseErr != nil {
			return nil, "", fmt.Errorf("invalid cursor '%s': %w", cursor, parseErr)
		}

		rows, err = r.db.QueryContext(ctx, r.rebind(`
			SELECT id, command, target, outcome, message, duration_ms, created_at
			FROM command_journal
			WHERE created_at < $1 OR (created_at = $2 AND id < $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`),
			cursorMillis, cursorMillis, cursorID, limit,
		)
		if err != nil {
			return nil, "", fmt.Errorf("query journal with cursor (time=%d, id=%d, limit=%d): %w", cursorMillis, cursorID, limit, err)
		}
	} else {
		rows, err = r.db.QueryContext(ctx, r.rebind(`
			SELECT id, command, target, outcome, message, duration_ms, created_at
			FROM command_journal
			ORDER BY created_at DESC, id DESC
			LIMIT $1`),
			limit,
		)
		if err != nil {
			return nil, "", fmt.Errorf("query journal without cursor (limit=%d): %w", limit, err)
		}
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e                 domain.JournalEntry
			command, outcome  string
			durationMs, milli int64
		)
		if err := rows.Scan(&e.ID, &command, &e.Target, &outcome, &e.Message, &durationMs, &milli); err != nil {
			return nil, "", fmt.Errorf("scan journal entry: %w", err)
		}
		e.Command = domain.Command(command)
		e.Outcome = domain.Outcome(outcome)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(milli).UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate journal: %w", err)
	}

	var nextCursor string
	if limit > 0 && len(entries) == limit {
		last := entries[len(entries)-1]
		nextCursor = fmt.Sprintf("%d::%d", last.CreatedAt.UnixMilli(), last.ID)
	}

	return entries, nextCursor, nil
}

// DeleteOld removes entries older than maxAge and any excess rows beyond
// maxRows, keeping the newest. Returns the total number of rows deleted.
func (r *Repository) DeleteOld(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		r.rebind(`DELETE FROM command_journal WHERE created_at < $1`),
		time.Now().UTC().Add(-maxAge).UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	ttlDeleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, r.rebind(`
		DELETE FROM command_journal WHERE id NOT IN (
			SELECT id FROM command_journal
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		)`), maxRows,
	)
	if err != nil {
		return 0, fmt.Errorf("delete excess entries: %w", err)
	}
	capDeleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return ttlDeleted + capDeleted, nil
}

// rebind rewrites $N placeholders for SQLite. Queries list their
// placeholders in ascending order without reuse, so plain ? is equivalent.
func (r *Repository) rebind(query string) string {
	if r.dialect != dialectSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

func parseCursor(cursor string) (int64, int64, error) {
	parts := strings.SplitN(cursor, "::", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("cursor must be in format 'timestamp::id'")
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid id in cursor: %w", err)
	}
	return millis, id, nil
}
