// Package secrets implements the secret lifecycle: id/password generation,
// sealing, passphrase gating with attempt-limited lockout, one-time reads,
// and tombstone retention. All cross-request coordination is delegated to
// the store's atomic operations; the engine itself keeps no state.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"onetime.share/internal/crypto"
	"onetime.share/internal/models"
	"onetime.share/internal/store"
)

var (
	// ErrNotFound deliberately covers "never existed", "already read",
	// "locked out", and "expired" alike, so an id cannot be probed for its
	// history.
	ErrNotFound = errors.New("secret not found")

	// ErrInvalidPassphrase is returned for every passphrase mismatch,
	// whether or not it also triggered the silent lockout transition.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

// createRetries bounds id regeneration when a freshly generated id collides
// with an existing key. With 16-char alphanumeric ids a single collision is
// already extraordinary.
const createRetries = 3

type Options struct {
	TombstoneTTL time.Duration
	MaxAttempts  int
}

type Engine struct {
	store store.Store
	opts  Options
	log   *slog.Logger
}

func NewEngine(s store.Store, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: s, opts: opts, log: log}
}

// CreatedSecret is what the creator gets back. The password exists only
// here; it is never persisted and never logged.
type CreatedSecret struct {
	ID        string
	Password  string
	ExpiresAt time.Time
}

// AddSecret seals the payload under a fresh password and persists the
// record with status UNREAD. The ttl is assumed validated by the caller
// against the configured window.
func (e *Engine) AddSecret(ctx context.Context, payload models.Payload, ttl time.Duration, passphrase string) (*CreatedSecret, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	password := crypto.GeneratePassword()
	envelope, err := crypto.Seal(plaintext, password)
	if err != nil {
		return nil, fmt.Errorf("sealing payload: %w", err)
	}

	rec := &models.Record{
		Envelope:  envelope,
		Status:    models.StatusUnread,
		ExpiresAt: time.Now().Add(ttl),
	}
	if passphrase != "" {
		hash, err := crypto.HashPassphrase(passphrase)
		if err != nil {
			return nil, fmt.Errorf("hashing passphrase: %w", err)
		}
		rec.Proof = &models.PassphraseProof{Hash: hash}
		rec.HasPassphrase = true
	}

	for i := 0; i < createRetries; i++ {
		id := crypto.GenerateID()
		err := e.store.Create(ctx, id, rec)
		if err == nil {
			return &CreatedSecret{ID: id, Password: password, ExpiresAt: rec.ExpiresAt}, nil
		}
		if errors.Is(err, store.ErrConflict) {
			e.log.Warn("secret id collision, regenerating", "attempt", i+1)
			continue
		}
		return nil, err
	}
	return nil, store.ErrConflict
}

// GetSecretData performs the one-time read. The READ transition commits
// before decryption, so of any number of concurrent readers exactly one can
// reach the envelope; the rest observe a non-UNREAD record and get
// ErrNotFound. A wrong password surfaces as crypto.ErrDecryption with the
// payload already gone — consumption is bound to the transition, not to a
// successful decrypt.
func (e *Engine) GetSecretData(ctx context.Context, id, password, passphrase string) (*models.Payload, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if rec.Status != models.StatusUnread {
		return nil, ErrNotFound
	}

	if rec.HasPassphrase || passphrase != "" {
		if !rec.HasPassphrase || rec.Proof == nil ||
			passphrase == "" || !crypto.VerifyPassphrase(rec.Proof.Hash, passphrase) {
			return nil, e.failAttempt(ctx, id)
		}
	}

	if err := e.store.Transition(ctx, id, models.StatusRead, e.tombstoneDeadline()); err != nil {
		// Losing the transition race is indistinguishable from the record
		// never having existed.
		if errors.Is(err, store.ErrTerminal) {
			return nil, ErrNotFound
		}
		return nil, mapNotFound(err)
	}

	plaintext, err := crypto.Open(rec.Envelope, password)
	if err != nil {
		return nil, err
	}

	var payload models.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &payload, nil
}

// failAttempt records one failed passphrase attempt and locks the secret
// out once the post-increment count reaches the configured maximum. The
// caller learns only that the passphrase was rejected, never whether the
// lockout fired.
func (e *Engine) failAttempt(ctx context.Context, id string) error {
	attempts, err := e.store.IncrementAttempts(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}

	if attempts >= e.opts.MaxAttempts {
		e.log.Debug("locking out secret after too many passphrase attempts", "attempts", attempts)
		err := e.store.Transition(ctx, id, models.StatusTooManyAttempts, e.tombstoneDeadline())
		if err != nil && !errors.Is(err, store.ErrTerminal) && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return ErrInvalidPassphrase
}

// GetSecretMetaData returns the credential-free record view, including for
// tombstoned records still within their retention window.
func (e *Engine) GetSecretMetaData(ctx context.Context, id string) (*models.Metadata, error) {
	meta, err := e.store.GetMeta(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return meta, nil
}

// DeleteSecret tombstones a secret on possession of its id alone. Deleting
// an already-consumed or locked-out secret is a no-op reported as success.
func (e *Engine) DeleteSecret(ctx context.Context, id string) error {
	err := e.store.Transition(ctx, id, models.StatusDeleted, e.tombstoneDeadline())
	if errors.Is(err, store.ErrTerminal) {
		return nil
	}
	return mapNotFound(err)
}

func (e *Engine) tombstoneDeadline() time.Time {
	return time.Now().Add(e.opts.TombstoneTTL)
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
