package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/pkg/lock"
)

// Registry errors.
var (
	ErrAlreadyActive = errors.New("user already has an active session")
	ErrNoSession     = errors.New("no active session")
)

// entry tracks one live session and its activity times.
type entry struct {
	sess         Session
	createdAt    time.Time
	lastActivity time.Time
}

// Registry is the process-wide table of active game sessions, keyed by user
// ID with at most one session per user across variants. A background sweep
// evicts idle sessions; wagered sessions are force-settled on eviction so a
// debited wager is never leaked.
type Registry struct {
	sessions    map[int64]*entry
	mu          sync.RWMutex
	sessionLock *lock.UserLock
	idleTimeout time.Duration
	now         func() time.Time
}

// NewRegistry creates a session registry with the given idle timeout.
func NewRegistry(idleTimeout time.Duration) *Registry {
	return &Registry{
		sessions:    make(map[int64]*entry),
		sessionLock: lock.NewUserLock(),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Start registers a new session for its owning user.
// Returns ErrAlreadyActive, leaving the existing session untouched, if the
// user already has a live session of any variant.
func (r *Registry) Start(sess Session) (*Render, error) {
	userID := sess.UserID()

	var view *Render
	err := r.sessionLock.WithLock(userID, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, ok := r.sessions[userID]; ok {
			return ErrAlreadyActive
		}

		now := r.now()
		r.sessions[userID] = &entry{sess: sess, createdAt: now, lastActivity: now}
		view = sess.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int64("user_id", userID).Str("variant", string(sess.Variant())).Msg("Session started")
	return view, nil
}

// Get returns the user's active session, or ErrNoSession.
func (r *Registry) Get(userID int64) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return e.sess, nil
}

// Apply routes an action to the user's session under the per-user session
// lock. Sessions are keyed by owner, so a user can never act on another
// user's session. After a terminal render (settlement included) the session
// is removed from the registry.
func (r *Registry) Apply(ctx context.Context, userID int64, action Action) (*Render, error) {
	var render *Render
	err := r.sessionLock.WithLock(userID, func() error {
		r.mu.RLock()
		e, ok := r.sessions[userID]
		r.mu.RUnlock()
		if !ok {
			return ErrNoSession
		}

		var err error
		render, err = e.sess.Apply(ctx, action)
		if err != nil {
			return err
		}

		r.mu.Lock()
		if render.Done {
			delete(r.sessions, userID)
		} else {
			e.lastActivity = r.now()
		}
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return render, nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle past the timeout and returns how many were
// removed. Wagered sessions are forfeited (force-settled); when a
// forfeiture's settlement cannot be persisted the session is kept and
// retried on the next sweep. Sessions busy with an in-flight Apply are
// skipped.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.RLock()
	var stale []int64
	for userID, e := range r.sessions {
		if e.lastActivity.Before(cutoff) {
			stale = append(stale, userID)
		}
	}
	r.mu.RUnlock()

	evicted := 0
	for _, userID := range stale {
		if !r.sessionLock.TryLock(userID) {
			// an Apply is in flight; it refreshed lastActivity anyway
			continue
		}

		r.mu.Lock()
		e, ok := r.sessions[userID]
		if !ok || !e.lastActivity.Before(cutoff) {
			r.mu.Unlock()
			r.sessionLock.Unlock(userID)
			continue
		}
		r.mu.Unlock()

		if err := e.sess.Forfeit(ctx); err != nil {
			log.Warn().
				Err(err).
				Int64("user_id", userID).
				Str("variant", string(e.sess.Variant())).
				Msg("Forfeiture settlement pending, keeping session for retry")
			r.sessionLock.Unlock(userID)
			continue
		}

		r.mu.Lock()
		delete(r.sessions, userID)
		r.mu.Unlock()
		r.sessionLock.Unlock(userID)

		evicted++
		log.Info().
			Int64("user_id", userID).
			Str("variant", string(e.sess.Variant())).
			Msg("Idle session evicted")
	}
	return evicted
}

// SweepAll forfeits every live session regardless of idle time. Used at
// shutdown so no debited wager is left unresolved.
func (r *Registry) SweepAll(ctx context.Context) {
	r.mu.RLock()
	userIDs := make([]int64, 0, len(r.sessions))
	for userID := range r.sessions {
		userIDs = append(userIDs, userID)
	}
	r.mu.RUnlock()

	for _, userID := range userIDs {
		r.sessionLock.Lock(userID)
		r.mu.Lock()
		e, ok := r.sessions[userID]
		r.mu.Unlock()
		if !ok {
			r.sessionLock.Unlock(userID)
			continue
		}

		if err := e.sess.Forfeit(ctx); err != nil {
			log.Error().
				Err(err).
				Int64("user_id", userID).
				Msg("Forfeiture settlement failed during shutdown sweep")
		} else {
			r.mu.Lock()
			delete(r.sessions, userID)
			r.mu.Unlock()
		}
		r.sessionLock.Unlock(userID)
	}
}

// RunSweeper runs the idle sweep at the given interval until the context is
// cancelled. Intended to run as a background goroutine.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
