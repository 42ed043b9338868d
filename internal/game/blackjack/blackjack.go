package blackjack

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"discord-casino-bot/internal/game"
	"discord-casino-bot/internal/model"
)

// Phase is the session's position in the turn sequence. The sequence is
// linear: PlayerTurn, then DealerTurn, then Settled.
type Phase int

// Session phases.
const (
	PhasePlayerTurn Phase = iota
	PhaseDealerTurn
	PhaseSettled
)

// Outcome is the resolved result of a hand.
type Outcome int

// Hand outcomes.
const (
	OutcomeBust Outcome = iota
	OutcomeWin
	OutcomePush
	OutcomeLoss
)

// dealerStand is the total at which the dealer stops drawing. Soft totals
// are hit exactly like hard ones.
const dealerStand = 17

// Settler settles a finished hand into a ledger credit. Implemented by
// service.LedgerService.
type Settler interface {
	SettleCredit(ctx context.Context, userID, amount int64, entryType, ref string) (int64, error)
}

// Session is one user's blackjack hand. The wager has already been debited
// by the caller before the session exists; settlement credits flow through
// the Settler. Transitioning to Settled and issuing the credit are one
// logical unit: a failed credit keeps the session unsettled so the action
// (or the idle sweep) can retry with the same outcome.
type Session struct {
	userID  int64
	wager   int64
	ref     string
	settler Settler

	shoe   []Rank
	player []Rank
	dealer []Rank
	phase  Phase

	outcome  Outcome
	resolved bool // dealer has played and outcome is fixed
	forfeit  bool // settlement triggered by idle eviction
}

// New deals a fresh hand: shuffled shoe, two cards each to player and
// dealer from the top. ref ties the settlement to the already-debited
// wager. A nil rng gets a time-seeded one.
func New(userID, wager int64, ref string, settler Settler, rng *rand.Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Session{
		userID:  userID,
		wager:   wager,
		ref:     ref,
		settler: settler,
		shoe:    newShoe(rng),
		phase:   PhasePlayerTurn,
	}
	s.player = append(s.player, s.draw(), s.draw())
	s.dealer = append(s.dealer, s.draw(), s.draw())
	return s
}

// UserID returns the owning user.
func (s *Session) UserID() int64 {
	return s.userID
}

// Variant returns the game type.
func (s *Session) Variant() game.Variant {
	return game.VariantBlackjack
}

// Wager returns the amount at stake.
func (s *Session) Wager() int64 {
	return s.wager
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// PlayerHand returns a copy of the player's cards.
func (s *Session) PlayerHand() []Rank {
	out := make([]Rank, len(s.player))
	copy(out, s.player)
	return out
}

// DealerHand returns a copy of the dealer's cards.
func (s *Session) DealerHand() []Rank {
	out := make([]Rank, len(s.dealer))
	copy(out, s.dealer)
	return out
}

// draw removes and returns the top card of the shoe.
func (s *Session) draw() Rank {
	c := s.shoe[0]
	s.shoe = s.shoe[1:]
	return c
}

// Apply consumes a player action. Hit draws a card and busts the hand past
// 21; stand (and quit, which may not abandon a live wager) hands the shoe
// to the dealer and settles.
func (s *Session) Apply(ctx context.Context, action game.Action) (*game.Render, error) {
	switch s.phase {
	case PhaseSettled:
		return nil, game.ErrSessionEnded
	case PhaseDealerTurn:
		// a previous settlement attempt failed; any action retries it
		return s.settle(ctx)
	}

	switch action {
	case game.ActionHit:
		s.player = append(s.player, s.draw())
		if Score(s.player) > 21 {
			// bust loses the wager outright, no dealer play and no credit
			s.resolved = true
			s.outcome = OutcomeBust
			s.phase = PhaseSettled
			return s.finalRender(), nil
		}
		return s.View(), nil
	case game.ActionStand, game.ActionQuit:
		s.resolve()
		return s.settle(ctx)
	default:
		return nil, game.ErrInvalidAction
	}
}

// resolve runs the dealer and fixes the outcome. The dealer draws while
// under 17, then the totals compare: dealer bust or lower total is a win,
// equal totals push, otherwise a loss.
func (s *Session) resolve() {
	for Score(s.dealer) < dealerStand {
		s.dealer = append(s.dealer, s.draw())
	}
	playerScore := Score(s.player)
	dealerScore := Score(s.dealer)

	switch {
	case dealerScore > 21 || playerScore > dealerScore:
		s.outcome = OutcomeWin
	case playerScore == dealerScore:
		s.outcome = OutcomePush
	default:
		s.outcome = OutcomeLoss
	}
	s.resolved = true
	s.phase = PhaseDealerTurn
}

// settle issues the settlement credit for a resolved hand and moves the
// session to Settled. On a persistence failure the phase stays DealerTurn
// and the error propagates; the outcome is already fixed, so a retry
// settles the identical result.
func (s *Session) settle(ctx context.Context) (*game.Render, error) {
	var credit int64
	entryType := ""
	switch s.outcome {
	case OutcomeWin:
		credit = s.wager * 2
		entryType = model.EntryTypeBlackjackWin
	case OutcomePush:
		credit = s.wager
		entryType = model.EntryTypeBlackjackPush
	}
	if s.forfeit && credit > 0 {
		entryType = model.EntryTypeBlackjackForfeit
	}

	if credit > 0 {
		if _, err := s.settler.SettleCredit(ctx, s.userID, credit, entryType, s.ref); err != nil {
			return nil, err
		}
	}

	s.phase = PhaseSettled
	return s.finalRender(), nil
}

// Forfeit force-settles an abandoned hand as an implicit stand: the dealer
// plays out and the normal payout applies, so the debited wager is never
// leaked. Returns the settlement error, if any, for the sweep to retry.
func (s *Session) Forfeit(ctx context.Context) error {
	if s.phase == PhaseSettled {
		return nil
	}
	s.forfeit = true
	if !s.resolved {
		s.resolve()
	}
	_, err := s.settle(ctx)
	return err
}

// View renders the in-progress hand with the dealer's hole card hidden.
func (s *Session) View() *game.Render {
	text := fmt.Sprintf(
		"🃏 Blackjack\nYour hand: %s (Total: %d)\nDealer's hand: %s ❓",
		formatHand(s.player), Score(s.player), s.dealer[0],
	)
	return &game.Render{
		Text:    text,
		Actions: []game.Action{game.ActionHit, game.ActionStand},
	}
}

// finalRender renders the settled hand with both totals and the result.
func (s *Session) finalRender() *game.Render {
	var result string
	switch s.outcome {
	case OutcomeBust:
		result = "You busted! ❌"
	case OutcomeWin:
		result = "You win! ✅"
	case OutcomePush:
		result = "Push! 🤝"
	default:
		result = "Dealer wins! ❌"
	}

	text := fmt.Sprintf(
		"🃏 Blackjack\nYour hand: %s (Total: %d)\nDealer's hand: %s (Total: %d)\n%s",
		formatHand(s.player), Score(s.player),
		formatHand(s.dealer), Score(s.dealer),
		result,
	)
	return &game.Render{Text: text, Done: true}
}
