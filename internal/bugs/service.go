// Package bugs mediates every read and write of bug records. It validates
// input through the models package, assigns identity and timestamps, and
// translates store faults into NotFoundError or StorageError.
package bugs

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/store"
)

// Service implements create/read/update/delete over a store.Store.
type Service struct {
	store store.Store
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Timestamps are truncated to
// milliseconds and converted to UTC regardless of the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithLogger sets the logger used for operation and fault logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service writing through st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   time.Now,
		newID: NewULID,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a new ULID string. Successive calls within one process are
// strictly increasing.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create validates input and stores a new open bug.
func (s *Service) Create(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	bug, err := models.ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	bug.ID = s.newID()
	bug.Status = models.StatusOpen
	bug.CreatedAt = now
	bug.UpdatedAt = now

	if err := s.store.CreateBug(ctx, bug); err != nil {
		return nil, s.storageFault("create", bug.ID, err)
	}
	s.log.Debug("bug created", "id", bug.ID, "priority", bug.Priority)
	return bug, nil
}

// Get returns one bug by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Bug, error) {
	bug, err := s.store.GetBug(ctx, id)
	if err != nil {
		return nil, s.translate("get", id, err)
	}
	return bug, nil
}

// GetAll returns every stored bug in insertion order. The slice is never nil.
func (s *Service) GetAll(ctx context.Context) ([]*models.Bug, error) {
	bugs, err := s.store.ListBugs(ctx)
	if err != nil {
		return nil, s.storageFault("list", "", err)
	}
	if bugs == nil {
		bugs = []*models.Bug{}
	}
	return bugs, nil
}

// Update merges a validated patch onto an existing bug. updatedAt always
// moves forward, even for an empty patch. Concurrent updates are
// last-write-wins.
func (s *Service) Update(ctx context.Context, id string, patch models.BugPatch) (*models.Bug, error) {
	bug, err := s.store.GetBug(ctx, id)
	if err != nil {
		return nil, s.translate("update", id, err)
	}

	valid, err := models.ValidatePatch(patch)
	if err != nil {
		return nil, err
	}
	valid.Apply(bug)

	now := s.timestamp()
	if !now.After(bug.UpdatedAt) {
		now = bug.UpdatedAt.Add(time.Millisecond)
	}
	bug.UpdatedAt = now

	if err := s.store.UpdateBug(ctx, bug); err != nil {
		return nil, s.translate("update", id, err)
	}
	s.log.Debug("bug updated", "id", id, "status", bug.Status)
	return bug, nil
}

// Delete hard-deletes a bug. Deleting an id that is already gone returns
// NotFoundError.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteBug(ctx, id); err != nil {
		return s.translate("delete", id, err)
	}
	s.log.Debug("bug deleted", "id", id)
	return nil
}

func (s *Service) translate(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return s.storageFault(op, id, err)
}

func (s *Service) storageFault(op, id string, err error) error {
	s.log.Error("storage fault", "op", op, "id", id, "error", err)
	return &StorageError{Op: op, Err: err}
}
