// Package session holds a provider's working roster for one console session.
// The roster is loaded once at sign-in, mutated optimistically as the
// provider works, and reconciled record by record from authoritative
// submission responses. A full refetch only happens on an explicit refresh.
package session

import (
	"context"
	"sync"

	"github.com/teleatencion/platform/internal/roster/domain"
	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Fetcher loads the provider's full roster
type Fetcher interface {
	FindByProvider(ctx context.Context, providerID types.ID) ([]domain.PatientAssignment, error)
}

// Submitter pushes one mutated assignment upstream and returns the
// authoritative record as the upstream now sees it
type Submitter interface {
	Submit(ctx context.Context, a *domain.PatientAssignment) (*domain.PatientAssignment, error)
}

// RepositorySubmitter adapts the assignment repository to the Submitter
// port: the stored row after a successful update is the authoritative one.
type RepositorySubmitter struct {
	Repo domain.Repository
}

func (rs RepositorySubmitter) Submit(ctx context.Context, a *domain.PatientAssignment) (*domain.PatientAssignment, error) {
	if err := rs.Repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return rs.Repo.FindByID(ctx, a.ID)
}

// Session is a provider's in-memory roster with filter state
type Session struct {
	providerID types.ID
	fetcher    Fetcher
	submitter  Submitter

	mu         sync.RWMutex
	roster     []domain.PatientAssignment
	filter     domain.FilterState
	generation uint64
}

// New creates a session for a provider
func New(providerID types.ID, fetcher Fetcher, submitter Submitter) *Session {
	return &Session{
		providerID: providerID,
		fetcher:    fetcher,
		submitter:  submitter,
	}
}

// Refresh replaces the whole snapshot from the fetcher
func (s *Session) Refresh(ctx context.Context) error {
	roster, err := s.fetcher.FindByProvider(ctx, s.providerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.roster = roster
	s.mu.Unlock()

	return nil
}

// View returns the snapshot with the current filter applied
func (s *Session) View() []domain.PatientAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ApplyFilter(s.roster, s.filter)
}

// Get returns one assignment from the snapshot by ID
func (s *Session) Get(id types.ID) (domain.PatientAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.roster {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.PatientAssignment{}, errors.NotFound("assignment", id.String())
}

// SetFilter installs a new filter state and returns its generation. Any
// remote query started for an earlier generation is superseded.
func (s *Session) SetFilter(f domain.FilterState) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = f
	s.generation++
	return s.generation
}

// DeliverQuery installs roster results fetched for a filter generation.
// Results for a superseded generation are discarded, never merged.
func (s *Session) DeliverQuery(generation uint64, roster []domain.PatientAssignment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}

	s.roster = roster
	return true
}

// Reconcile replaces exactly one record with its authoritative version.
// Records the snapshot does not know yet are appended.
func (s *Session) Reconcile(updated domain.PatientAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileLocked(updated)
}

func (s *Session) reconcileLocked(updated domain.PatientAssignment) {
	for i := range s.roster {
		if s.roster[i].ID == updated.ID {
			s.roster[i] = updated
			return
		}
	}
	s.roster = append(s.roster, updated)
}

// Submit mutates one assignment and pushes it upstream. The mutation is
// applied to the snapshot optimistically before the submission; if the
// submission fails the record is rolled back to its previous state and the
// error is returned for the caller's retry affordance. Validation failures
// inside mutate never reach the submitter.
func (s *Session) Submit(ctx context.Context, id types.ID, mutate func(*domain.PatientAssignment) error) error {
	s.mu.Lock()

	idx := -1
	for i := range s.roster {
		if s.roster[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return errors.NotFound("assignment", id.String())
	}

	original := cloneAssignment(s.roster[idx])
	working := cloneAssignment(s.roster[idx])

	if err := mutate(&working); err != nil {
		s.mu.Unlock()
		return err
	}

	s.roster[idx] = working
	s.mu.Unlock()

	authoritative, err := s.submitter.Submit(ctx, &working)
	if err != nil {
		// The snapshot may have been replaced by a query while the
		// submission was in flight, so roll back by ID, not index.
		s.mu.Lock()
		for i := range s.roster {
			if s.roster[i].ID == original.ID {
				s.roster[i] = original
				break
			}
		}
		s.mu.Unlock()
		return err
	}

	if authoritative != nil {
		s.Reconcile(*authoritative)
	}

	return nil
}

// cloneAssignment copies an assignment deeply enough that mutating the copy
// never leaks into the original through shared slices
func cloneAssignment(a domain.PatientAssignment) domain.PatientAssignment {
	clone := a

	if a.ChronicConditions != nil {
		clone.ChronicConditions = make([]domain.ChronicTag, len(a.ChronicConditions))
		copy(clone.ChronicConditions, a.ChronicConditions)
	}
	if a.Events != nil {
		clone.Events = make([]domain.AssignmentEvent, len(a.Events))
		copy(clone.Events, a.Events)
	}

	return clone
}
