// Package game defines the session interface and per-user session registry
// for the interactive casino games.
package game

import (
	"context"
	"errors"
)

// Variant identifies a game type.
type Variant string

// Game variants.
const (
	VariantSnake     Variant = "snake"
	VariantBlackjack Variant = "blackjack"
)

// Action is a player intent applied to a session.
type Action string

// Player actions.
const (
	ActionLeft  Action = "left"
	ActionRight Action = "right"
	ActionUp    Action = "up"
	ActionDown  Action = "down"
	ActionHit   Action = "hit"
	ActionStand Action = "stand"
	ActionQuit  Action = "quit"
)

// Common errors for session transitions.
var (
	ErrInvalidAction = errors.New("action not valid for this session")
	ErrSessionEnded  = errors.New("session already ended")
)

// Render is the structured result returned to the adapter after each
// transition: plain text plus the currently valid next actions. Done marks a
// terminal state; the registry drops the session after a Done render.
type Render struct {
	Text    string
	Actions []Action
	Done    bool
}

// Session owns the mutable state of one in-progress game for one user.
// Sessions are not safe for concurrent use; the registry serializes access
// per user.
type Session interface {
	// UserID returns the owning user.
	UserID() int64

	// Variant returns the game type.
	Variant() Variant

	// View returns the current render without changing state.
	View() *Render

	// Apply consumes one player action and returns the new render.
	// A render with Done set means the session reached a terminal state and
	// any settlement already completed.
	Apply(ctx context.Context, action Action) (*Render, error)

	// Forfeit force-settles an abandoned session. Free-to-play variants
	// return nil immediately; wagered variants must resolve the outstanding
	// wager. A non-nil error means the settlement is still pending and the
	// session must be kept for retry.
	Forfeit(ctx context.Context) error
}
