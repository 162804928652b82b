package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/secretgate/internal/infrastructure/database"
)

// timeLayout is fixed width so created_at orders correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectEntries = "SELECT id, action, identifier, method, outcome, source, details, created_at FROM audit_logs"

// Repository persists audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLRepository stores audit entries on SQLite or PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a repository on db.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts e, filling in ID and CreatedAt when they are empty.
func (r *SQLRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var details sql.NullString
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, identifier, method, outcome, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Identifier, e.Method, e.Outcome, e.Source, details,
		e.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns one page of entries matching filter, newest first.
func (r *SQLRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = filter.normalized()
	where, args := filter.where()

	res := &ListResult{Entries: []Entry{}, Limit: filter.Limit, Offset: filter.Offset}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&res.Total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	if res.Total <= filter.Offset {
		return res, nil
	}

	rows, err := r.db.QueryContext(ctx,
		selectEntries+where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return res, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e         Entry
		details   sql.NullString
		createdAt string
	)
	if err := rows.Scan(&e.ID, &e.Action, &e.Identifier, &e.Method,
		&e.Outcome, &e.Source, &details, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}

	// Details are informational; an undecodable blob is dropped, not fatal.
	if details.Valid && details.String != "" {
		_ = json.Unmarshal([]byte(details.String), &e.Details) //nolint:errcheck // see above
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
