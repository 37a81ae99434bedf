// Package session owns the in-memory session state — current user, résumé
// analysis, job history — and keeps it synchronized with the remote profile
// store across sign-in and sign-out transitions.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-dashboard/internal/identity"
	"github.com/jonathan/job-dashboard/internal/types"
)

// Phase is the lifecycle state of the session.
type Phase string

const (
	// PhaseLoading means an identity transition is being applied and the
	// profile data is not yet settled.
	PhaseLoading Phase = "loading"
	// PhaseAnonymous means no user is signed in; analysis is nil and history
	// is empty.
	PhaseAnonymous Phase = "anonymous"
	// PhaseAuthenticated means a user is signed in and the profile data has
	// settled.
	PhaseAuthenticated Phase = "authenticated"
)

// loadWarning is surfaced when a profile load fails and the session falls
// back to an empty state.
const loadWarning = "Could not load your saved profile. Starting with an empty session."

// ProfileStore is the per-user persistence the store writes through to.
type ProfileStore interface {
	ReadAnalysis(ctx context.Context, userID uuid.UUID) (*types.ResumeAnalysis, error)
	WriteAnalysis(ctx context.Context, userID uuid.UUID, analysis *types.ResumeAnalysis) error
	ReadJobHistory(ctx context.Context, userID uuid.UUID) ([]types.Job, error)
	AppendJob(ctx context.Context, userID uuid.UUID, draft types.JobDraft, date string) (*types.Job, error)
	DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error
}

// Snapshot is a consistent view of the session state for rendering.
type Snapshot struct {
	Phase          Phase                 `json:"phase"`
	User           *identity.User        `json:"user,omitempty"`
	ResumeAnalysis *types.ResumeAnalysis `json:"resume_analysis,omitempty"`
	JobHistory     []types.Job           `json:"job_history"`
	Warning        string                `json:"warning,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp job dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the session-synchronized store. It exclusively owns the in-memory
// session; mutations write through to the profile store before memory is
// updated, and identity transitions reload or clear the session.
type Store struct {
	profiles ProfileStore
	now      func() time.Time

	mu       sync.Mutex
	phase    Phase
	gen      uint64 // bumped per identity transition; stale loads are discarded
	user     *identity.User
	analysis *types.ResumeAnalysis
	history  []types.Job
	warning  string

	watchMu   sync.Mutex
	nextWatch int
	watchers  map[int]chan Snapshot

	unsubscribe func()
}

// New creates a store in the loading phase. Call Bind to attach it to an
// identity session.
func New(profiles ProfileStore, opts ...Option) *Store {
	s := &Store{
		profiles: profiles,
		now:      time.Now,
		phase:    PhaseLoading,
		watchers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind subscribes the store to identity changes. The subscription delivers
// the current user immediately, so the session settles to anonymous or
// authenticated before Bind returns.
func (s *Store) Bind(ids *identity.Session) {
	s.unsubscribe = ids.Subscribe(s.onAuthChange)
}

// Close detaches the store from the identity session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// onAuthChange applies one identity transition.
//
// A transition to none clears the session unconditionally with no store
// calls. A transition to a user loads the analysis and history concurrently
// and assigns both atomically once both reads complete; a failed load settles
// to an empty session with a recoverable warning instead of leaving state
// undefined. If another transition starts while a load is in flight, the
// stale results are discarded.
func (s *Store) onAuthChange(user *identity.User) {
	s.mu.Lock()
	s.gen++
	gen := s.gen

	if user == nil {
		s.phase = PhaseAnonymous
		s.user = nil
		s.analysis = nil
		s.history = nil
		s.warning = ""
		s.mu.Unlock()
		s.broadcast()
		return
	}

	s.phase = PhaseLoading
	s.user = user
	s.analysis = nil
	s.history = nil
	s.warning = ""
	s.mu.Unlock()
	s.broadcast()

	var (
		analysis *types.ResumeAnalysis
		history  []types.Job
	)
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		analysis, err = s.profiles.ReadAnalysis(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.profiles.ReadJobHistory(gctx, user.ID)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if s.gen != gen {
		// Superseded by a later transition.
		s.mu.Unlock()
		return
	}
	s.phase = PhaseAuthenticated
	if err != nil {
		log.Printf("[session] profile load failed for %s: %v", user.Email, err)
		s.analysis = nil
		s.history = nil
		s.warning = loadWarning
	} else {
		s.analysis = analysis
		s.history = history
		s.warning = ""
	}
	s.mu.Unlock()
	s.broadcast()
}

// Snapshot returns a consistent copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	history := make([]types.Job, len(s.history))
	copy(history, s.history)
	return Snapshot{
		Phase:          s.phase,
		User:           s.user,
		ResumeAnalysis: s.analysis,
		JobHistory:     history,
		Warning:        s.warning,
	}
}

// CurrentUser returns the signed-in user, or nil.
func (s *Store) CurrentUser() *identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// ResumeAnalysis returns the in-memory analysis, or nil.
func (s *Store) ResumeAnalysis() *types.ResumeAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// JobHistory returns a copy of the in-memory history, most recently added
// first.
func (s *Store) JobHistory() []types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]types.Job, len(s.history))
	copy(history, s.history)
	return history
}

// SetResumeAnalysis replaces the in-memory analysis. When a user is signed in
// and the analysis is non-nil, it is written through to the profile store
// first; the memory update only happens after the write succeeds. Setting nil
// updates memory only, so clearing local state on an error path never
// destroys a previously saved analysis. If an identity transition lands while
// the write is in flight, the memory update is discarded.
func (s *Store) SetResumeAnalysis(ctx context.Context, analysis *types.ResumeAnalysis) error {
	s.mu.Lock()
	user := s.user
	gen := s.gen
	s.mu.Unlock()

	if user != nil && analysis != nil {
		if err := s.profiles.WriteAnalysis(ctx, user.ID, analysis); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		// Superseded by a later transition; the session this update belongs
		// to is gone.
		s.mu.Unlock()
		return nil
	}
	s.analysis = analysis
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// AddJobToHistory stamps the draft with today's date, persists it, and
// prepends the returned record to the in-memory history. It is a silent
// no-op when no user is signed in, or when an entry with the same title and
// company already exists anywhere in the history; duplicates make no store
// call. The added job is returned, or nil for a no-op. If an identity
// transition lands while the append is in flight, the persisted record is
// returned but the in-memory prepend is discarded; the record surfaces on the
// user's next load.
func (s *Store) AddJobToHistory(ctx context.Context, draft types.JobDraft) (*types.Job, error) {
	s.mu.Lock()
	user := s.user
	gen := s.gen
	duplicate := false
	for _, j := range s.history {
		if j.Title == draft.Title && j.Company == draft.Company {
			duplicate = true
			break
		}
	}
	s.mu.Unlock()

	if user == nil || duplicate {
		return nil, nil
	}

	date := s.now().Format("2006-01-02")
	job, err := s.profiles.AppendJob(ctx, user.ID, draft, date)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return job, nil
	}
	s.history = append([]types.Job{*job}, s.history...)
	s.mu.Unlock()
	s.broadcast()
	return job, nil
}

// DeleteJobFromHistory removes a job from the profile store, then filters it
// out of the in-memory history without re-fetching. It is a no-op when no
// user is signed in, and idempotent for unknown IDs. If an identity
// transition lands while the store delete is in flight, the local filter is
// discarded so it cannot clobber a newer session's history.
func (s *Store) DeleteJobFromHistory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	user := s.user
	gen := s.gen
	s.mu.Unlock()

	if user == nil {
		return nil
	}

	if err := s.profiles.DeleteJob(ctx, user.ID, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	filtered := s.history[:0:0]
	for _, j := range s.history {
		if j.ID != id {
			filtered = append(filtered, j)
		}
	}
	s.history = filtered
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// Watch returns a channel that receives a snapshot after every state change,
// plus a cancel function. A slow receiver is skipped ahead to the latest
// snapshot rather than blocking the store.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	cancel := func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// broadcast delivers the current snapshot to every watcher, replacing any
// undelivered snapshot with the latest.
func (s *Store) broadcast() {
	snap := s.Snapshot()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
