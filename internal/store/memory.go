package store

import (
	"context"
	"sync"
	"time"

	"onetime.share/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the single-process implementation, used for local runs and
// for engine tests. The mutex stands in for Redis's per-key atomicity:
// every operation that the Redis store runs as one script executes here
// under one lock acquisition.
type MemoryStore struct {
	secrets       map[string]*models.Record
	mu            sync.RWMutex
	cleanupCancel context.CancelFunc
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	store := &MemoryStore{
		secrets:       make(map[string]*models.Record),
		cleanupCancel: cancel,
	}
	go store.cleanupLoop(ctx, cleanupInterval)
	return store
}

func (s *MemoryStore) Create(ctx context.Context, id string, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.secrets[id]; ok && !expired(existing) {
		return ErrConflict
	}
	s.secrets[id] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.secrets[id]
	if !ok || expired(rec) {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) GetMeta(ctx context.Context, id string) (*models.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.secrets[id]
	if !ok || expired(rec) {
		return nil, ErrNotFound
	}
	meta := rec.Meta()
	return &meta, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, status models.Status, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.secrets[id]
	if !ok || expired(rec) {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return ErrTerminal
	}

	rec.Envelope = ""
	rec.Proof = nil
	rec.Status = status
	if expiresAt.After(rec.ExpiresAt) {
		rec.ExpiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.secrets[id]
	if !ok || expired(rec) {
		return 0, ErrNotFound
	}

	if rec.Proof == nil {
		rec.Proof = &models.PassphraseProof{}
	}
	rec.Proof.Attempts++
	return rec.Proof.Attempts, nil
}

func (s *MemoryStore) Close() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets = nil
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.secrets {
		if expired(rec) {
			delete(s.secrets, id)
		}
	}
}

func expired(rec *models.Record) bool {
	return time.Now().After(rec.ExpiresAt)
}

func cloneRecord(rec *models.Record) *models.Record {
	clone := *rec
	if rec.Proof != nil {
		proof := *rec.Proof
		clone.Proof = &proof
	}
	return &clone
}
