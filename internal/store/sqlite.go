package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joescharf/bugboard/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const bugColumns = `id, title, description, priority, status, assignee, reporter, environment, reproducible, steps_to_reproduce, tags, created_at, updated_at`

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers; concurrent HTTP requests would
	// otherwise hit "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	tags, err := encodeTags(bug.Tags)
	if err != nil {
		return fmt.Errorf("create bug: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bugs (`+bugColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bug.ID, bug.Title, bug.Description, string(bug.Priority), string(bug.Status),
		bug.Assignee, bug.Reporter, bug.Environment, boolToInt(bug.Reproducible),
		bug.StepsToReproduce, tags, bug.CreatedAt, bug.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bug: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id)
	bug, err := scanBug(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	return bug, nil
}

func (s *SQLiteStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bugColumns+` FROM bugs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bugs := []*models.Bug{}
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}
		bugs = append(bugs, bug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	return bugs, nil
}

func (s *SQLiteStore) UpdateBug(ctx context.Context, bug *models.Bug) error {
	tags, err := encodeTags(bug.Tags)
	if err != nil {
		return fmt.Errorf("update bug: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE bugs SET title=?, description=?, priority=?, status=?, assignee=?, reporter=?, environment=?,
			reproducible=?, steps_to_reproduce=?, tags=?, updated_at=?
		WHERE id=?`,
		bug.Title, bug.Description, string(bug.Priority), string(bug.Status),
		bug.Assignee, bug.Reporter, bug.Environment, boolToInt(bug.Reproducible),
		bug.StepsToReproduce, tags, bug.UpdatedAt, bug.ID,
	)
	if err != nil {
		return fmt.Errorf("update bug: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, bug.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteBug(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM bugs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(r rowScanner) (*models.Bug, error) {
	bug := &models.Bug{}
	var priority, status, tags string
	if err := r.Scan(&bug.ID, &bug.Title, &bug.Description, &priority, &status,
		&bug.Assignee, &bug.Reporter, &bug.Environment, &bug.Reproducible,
		&bug.StepsToReproduce, &tags, &bug.CreatedAt, &bug.UpdatedAt); err != nil {
		return nil, err
	}
	bug.Priority = models.Priority(priority)
	bug.Status = models.Status(status)
	bug.CreatedAt = bug.CreatedAt.UTC()
	bug.UpdatedAt = bug.UpdatedAt.UTC()

	bug.Tags = []string{}
	if err := json.Unmarshal([]byte(tags), &bug.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", bug.ID, err)
	}
	if bug.Tags == nil {
		bug.Tags = []string{}
	}
	return bug, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}
