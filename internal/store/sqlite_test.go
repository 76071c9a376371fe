package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func testBug(id, title string) *models.Bug {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Bug{
		ID:          id,
		Title:       title,
		Description: "Something is broken in a reproducible way",
		Priority:    models.PriorityHigh,
		Status:      models.StatusOpen,
		Assignee:    "Alice",
		Reporter:    "Bob",
		Environment: "Firefox 121",
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// adapters lists every Store implementation so the contract tests below
// run against each of them.
func adapters() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return newTestStore(t) },
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestBugCRUD(t *testing.T) {
	for name, newStore := range adapters() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			bug := testBug("01HX0000000000000000000001", "Crash on save")
			bug.Reproducible = true
			bug.StepsToReproduce = "open, save"
			bug.Tags = []string{"io", "crash"}
			require.NoError(t, s.CreateBug(ctx, bug))

			got, err := s.GetBug(ctx, bug.ID)
			require.NoError(t, err)
			assert.Equal(t, bug.Title, got.Title)
			assert.Equal(t, models.PriorityHigh, got.Priority)
			assert.Equal(t, models.StatusOpen, got.Status)
			assert.True(t, got.Reproducible)
			assert.Equal(t, "open, save", got.StepsToReproduce)
			assert.Equal(t, []string{"io", "crash"}, got.Tags)
			assert.True(t, bug.CreatedAt.Equal(got.CreatedAt))

			got.Status = models.StatusResolved
			got.Tags = []string{"io"}
			got.UpdatedAt = got.UpdatedAt.Add(time.Minute)
			require.NoError(t, s.UpdateBug(ctx, got))

			got2, err := s.GetBug(ctx, bug.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusResolved, got2.Status)
			assert.Equal(t, []string{"io"}, got2.Tags)
			assert.True(t, got.UpdatedAt.Equal(got2.UpdatedAt))
			assert.True(t, bug.CreatedAt.Equal(got2.CreatedAt))

			require.NoError(t, s.DeleteBug(ctx, bug.ID))
			_, err = s.GetBug(ctx, bug.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListBugs_InsertionOrder(t *testing.T) {
	for name, newStore := range adapters() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			empty, err := s.ListBugs(ctx)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			// ids deliberately out of lexical order
			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, s.CreateBug(ctx, testBug(id, "bug "+id)))
			}

			bugs, err := s.ListBugs(ctx)
			require.NoError(t, err)
			require.Len(t, bugs, 3)
			assert.Equal(t, "c", bugs[0].ID)
			assert.Equal(t, "a", bugs[1].ID)
			assert.Equal(t, "b", bugs[2].ID)
			for _, b := range bugs {
				assert.NotNil(t, b.Tags)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	for name, newStore := range adapters() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.GetBug(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Contains(t, err.Error(), "missing")

			assert.ErrorIs(t, s.UpdateBug(ctx, testBug("missing", "x")), ErrNotFound)
			assert.ErrorIs(t, s.DeleteBug(ctx, "missing"), ErrNotFound)
		})
	}
}

func TestDeleteTwice(t *testing.T) {
	for name, newStore := range adapters() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.CreateBug(ctx, testBug("x", "x")))
			require.NoError(t, s.DeleteBug(ctx, "x"))
			assert.ErrorIs(t, s.DeleteBug(ctx, "x"), ErrNotFound)
		})
	}
}

func TestCreateBug_DuplicateID(t *testing.T) {
	for name, newStore := range adapters() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.CreateBug(ctx, testBug("dup", "first")))
			err := s.CreateBug(ctx, testBug("dup", "second"))
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCreateBug_RejectsUnknownEnum(t *testing.T) {
	s := newTestStore(t)
	bug := testBug("bad", "bad")
	bug.Priority = "urgent"
	assert.Error(t, s.CreateBug(context.Background(), bug))
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	bug := testBug("m", "title")
	bug.Tags = []string{"a"}
	require.NoError(t, s.CreateBug(ctx, bug))

	bug.Tags[0] = "mutated"
	got, err := s.GetBug(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)

	got.Title = "changed"
	again, err := s.GetBug(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "title", again.Title)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListBugs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
