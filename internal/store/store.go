package store

import (
	"context"
	"errors"
	"time"

	"onetime.share/internal/models"
)

var (
	ErrNotFound    = errors.New("secret not found")
	ErrConflict    = errors.New("secret id already exists")
	ErrTerminal    = errors.New("secret already in terminal state")
	ErrUnavailable = errors.New("store unavailable")
)

// Store holds secret records behind atomic operations. It enforces no
// business policy; the lifecycle engine decides what to do, the store only
// guarantees that multi-field mutations apply indivisibly and that records
// vanish once their expiry passes.
type Store interface {
	// Create persists a new record and its expiry as one atomic unit,
	// failing with ErrConflict if the id is already taken.
	Create(ctx context.Context, id string, rec *models.Record) error

	// Get returns the full record, ErrNotFound once it has expired out of
	// the store.
	Get(ctx context.Context, id string) (*models.Record, error)

	// GetMeta returns the credential-free view, readable in any status.
	GetMeta(ctx context.Context, id string) (*models.Metadata, error)

	// Transition scrubs the payload and passphrase proof, sets the new
	// status, and moves the expiry, as one indivisible operation. It applies
	// only while the record is still UNREAD: concurrent callers racing on
	// the same id see exactly one success, the rest get ErrTerminal. The
	// stored expiry never decreases; if the record already outlives the
	// requested deadline, the longer one stands.
	Transition(ctx context.Context, id string, status models.Status, expiresAt time.Time) error

	// IncrementAttempts atomically bumps the passphrase attempt counter and
	// returns the post-increment value.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	Close() error
}
