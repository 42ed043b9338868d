// Package snake implements the free-to-play 5x5 snake game session.
package snake

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"discord-casino-bot/internal/game"
)

// BoardSize is the fixed board edge length. The board is toroidal: moves
// wrap around the edges instead of hitting a wall.
const BoardSize = 5

// Cell is one board coordinate.
type Cell struct {
	X int
	Y int
}

// moveActions are the actions accepted while the session is active.
var moveActions = []game.Action{
	game.ActionLeft,
	game.ActionRight,
	game.ActionUp,
	game.ActionDown,
}

// deltas maps directional actions to unit moves.
var deltas = map[game.Action]Cell{
	game.ActionLeft:  {X: -1, Y: 0},
	game.ActionRight: {X: 1, Y: 0},
	game.ActionUp:    {X: 0, Y: -1},
	game.ActionDown:  {X: 0, Y: 1},
}

// Session is one user's snake game. The body is kept tail-to-head as a
// simple path with no self-intersection; food is never inside the body.
type Session struct {
	userID int64
	body   []Cell // tail first, head last
	food   Cell
	facing game.Action
	ended  bool
	rng    *rand.Rand
}

// New creates a snake session with the snake at the board center and food
// spawned on a free cell. A nil rng gets a time-seeded one.
func New(userID int64, rng *rand.Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Session{
		userID: userID,
		body:   []Cell{{X: 2, Y: 2}},
		facing: game.ActionRight,
		rng:    rng,
	}
	s.food = s.spawnFood()
	return s
}

// UserID returns the owning user.
func (s *Session) UserID() int64 {
	return s.userID
}

// Variant returns the game type.
func (s *Session) Variant() game.Variant {
	return game.VariantSnake
}

// Body returns a copy of the occupied cells, tail first.
func (s *Session) Body() []Cell {
	out := make([]Cell, len(s.body))
	copy(out, s.body)
	return out
}

// Food returns the current food cell.
func (s *Session) Food() Cell {
	return s.food
}

// spawnFood samples a free cell uniformly by rejection.
func (s *Session) spawnFood() Cell {
	for {
		c := Cell{X: s.rng.Intn(BoardSize), Y: s.rng.Intn(BoardSize)}
		if !s.occupied(c) {
			return c
		}
	}
}

func (s *Session) occupied(c Cell) bool {
	for _, b := range s.body {
		if b == c {
			return true
		}
	}
	return false
}

// Apply consumes one directional action or quit. A move into the snake's
// own body is rejected as a no-op: the state is left exactly as it was and
// the current render is returned.
func (s *Session) Apply(ctx context.Context, action game.Action) (*game.Render, error) {
	if s.ended {
		return nil, game.ErrSessionEnded
	}

	if action == game.ActionQuit {
		s.ended = true
		return &game.Render{Text: "Snake game over.", Done: true}, nil
	}

	delta, ok := deltas[action]
	if !ok {
		return nil, game.ErrInvalidAction
	}

	head := s.body[len(s.body)-1]
	newHead := Cell{
		X: (head.X + delta.X + BoardSize) % BoardSize,
		Y: (head.Y + delta.Y + BoardSize) % BoardSize,
	}

	if s.occupied(newHead) {
		return s.View(), nil
	}

	s.body = append(s.body, newHead)
	s.facing = action
	if newHead == s.food {
		// grow by one: tail retained, fresh food on a free cell
		s.food = s.spawnFood()
	} else {
		s.body = s.body[1:]
	}

	return s.View(), nil
}

// Forfeit ends the session with no economic effect; snake is free-to-play.
func (s *Session) Forfeit(ctx context.Context) error {
	s.ended = true
	return nil
}

// View renders the board: empty cells, body, head and food.
func (s *Session) View() *game.Render {
	var grid [BoardSize][BoardSize]string
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			grid[y][x] = "⬛"
		}
	}
	grid[s.food.Y][s.food.X] = "🍎"
	for _, c := range s.body {
		grid[c.Y][c.X] = "🟩"
	}
	head := s.body[len(s.body)-1]
	grid[head.Y][head.X] = "🟥"

	var b strings.Builder
	for y := 0; y < BoardSize; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < BoardSize; x++ {
			b.WriteString(grid[y][x])
		}
	}

	actions := make([]game.Action, 0, len(moveActions)+1)
	actions = append(actions, moveActions...)
	actions = append(actions, game.ActionQuit)

	return &game.Render{Text: b.String(), Actions: actions}
}
