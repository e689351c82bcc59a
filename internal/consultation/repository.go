package consultation

import (
	"context"
	"sync"
	"time"
)

// Repository holds session state. Implementations must be safe for concurrent use
// and must hand out copies, never shared references.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Update replaces an existing session and returns ErrSessionNotFound when
	// it is gone.
	Update(ctx context.Context, s *Session) error
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryRepository returns a volatile, process-local store.
func NewMemoryRepository() Repository {
	return &memoryRepo{sessions: make(map[string]*Session)}
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Save(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) DeleteUpdatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
