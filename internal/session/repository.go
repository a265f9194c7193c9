package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/store"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrConflict is returned when a save loses a race with another writer.
	ErrConflict = store.ErrConflict
)

type (
	ListOptions    = store.ListOptions
	SessionSummary = store.SessionSummary
)

// Repository loads and saves whole session states. Save is optimistic: it
// fails with ErrConflict when the stored version no longer matches
// state.Version, and bumps state.Version on success.
type Repository interface {
	Load(ctx context.Context, id string) (*assessment.SessionState, error)
	Save(ctx context.Context, state *assessment.SessionState) error
	List(ctx context.Context, opts ListOptions) ([]SessionSummary, error)
}

// MemoryRepository keeps deep copies of states in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[string]*assessment.SessionState
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[string]*assessment.SessionState)}
}

func (r *MemoryRepository) Load(_ context.Context, id string) (*assessment.SessionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, state *assessment.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.states[state.ID]
	switch {
	case state.Version == 0 && exists:
		return fmt.Errorf("insert session %s: %w", state.ID, ErrConflict)
	case state.Version > 0 && !exists:
		return ErrNotFound
	case exists && stored.Version != state.Version:
		return fmt.Errorf("update session %s at version %d: %w", state.ID, state.Version, ErrConflict)
	}

	state.Version++
	r.states[state.ID] = state.Clone()
	return nil
}

func (r *MemoryRepository) List(_ context.Context, opts ListOptions) ([]SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []SessionSummary
	for _, s := range r.states {
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		if !opts.UpdatedBefore.IsZero() && !s.UpdatedAt.Before(opts.UpdatedBefore) {
			continue
		}
		out = append(out, Summarize(s))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Summarize projects a state onto its listing row.
func Summarize(s *assessment.SessionState) SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		Status:       s.Status,
		CurrentLevel: s.CurrentLevel,
		MessageCount: len(s.Messages),
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
