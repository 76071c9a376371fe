package store

import (
	"context"
	"errors"

	"github.com/joescharf/bugboard/internal/models"
)

// ErrNotFound is returned (wrapped with the id) when no live bug matches.
var ErrNotFound = errors.New("bug not found")

// Store defines the persistence interface for bugboard.
// Implementations are the only writers of durable state.
type Store interface {
	// CreateBug inserts a fully populated bug. The caller assigns the id
	// and timestamps.
	CreateBug(ctx context.Context, bug *models.Bug) error
	GetBug(ctx context.Context, id string) (*models.Bug, error)
	// ListBugs returns every bug in insertion order.
	ListBugs(ctx context.Context) ([]*models.Bug, error)
	// UpdateBug replaces all mutable fields of an existing bug.
	UpdateBug(ctx context.Context, bug *models.Bug) error
	DeleteBug(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
