// Package handler routes parsed action intents to the ledger and the game
// session registry. The messaging-platform adapter owns command parsing and
// message delivery; the core only sees events of the form
// {actor, action kind, params} and answers with a structured reply.
package handler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/config"
	"discord-casino-bot/internal/game"
	"discord-casino-bot/internal/game/blackjack"
	"discord-casino-bot/internal/game/roulette"
	"discord-casino-bot/internal/game/snake"
	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/service"
)

// ActionKind identifies an inbound intent.
type ActionKind string

// Inbound action kinds.
const (
	KindStartSnake     ActionKind = "start_snake"
	KindSnakeMove      ActionKind = "snake_move"
	KindStartBlackjack ActionKind = "start_blackjack"
	KindHit            ActionKind = "hit"
	KindStand          ActionKind = "stand"
	KindQuit           ActionKind = "quit"
	KindStartRoulette  ActionKind = "start_roulette"
	KindCheckBalance   ActionKind = "check_balance"
	KindClaimDaily     ActionKind = "claim_daily"
	KindTransfer       ActionKind = "transfer"
	KindAdminGrant     ActionKind = "admin_grant"
)

// Params carries the action-specific parameters. Unused fields stay zero.
type Params struct {
	Direction string // snake_move: left/right/up/down
	Color     string // start_roulette
	Bet       int64  // start_blackjack, start_roulette
	ToUser    int64  // transfer, admin_grant
	Amount    int64  // transfer, admin_grant
}

// Event is one inbound action intent from the adapter.
type Event struct {
	ActorID int64
	Kind    ActionKind
	Params  Params
}

// Reply is the structured result handed back to the adapter: plain text and
// the currently valid next actions, if any.
type Reply struct {
	Text    string
	Actions []game.Action
}

// Dispatcher errors.
var (
	ErrUnknownAction    = errors.New("unknown action kind")
	ErrUnknownDirection = errors.New("direction must be left, right, up or down")
)

// Dispatcher maps events to ledger operations and session transitions.
// Validation and authorization failures are reported before any state is
// touched; wagers are debited before the game they fund exists.
type Dispatcher struct {
	cfg      *config.Config
	ledger   *service.LedgerService
	registry *game.Registry
	rng      *rand.Rand // optional deterministic source for tests
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg *config.Config, ledger *service.LedgerService, registry *game.Registry) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		ledger:   ledger,
		registry: registry,
		now:      time.Now,
	}
}

// ActionKinds lists every intent kind the dispatcher accepts.
func (d *Dispatcher) ActionKinds() []ActionKind {
	return []ActionKind{
		KindStartSnake, KindSnakeMove,
		KindStartBlackjack, KindHit, KindStand, KindQuit,
		KindStartRoulette,
		KindCheckBalance, KindClaimDaily, KindTransfer, KindAdminGrant,
	}
}

// Dispatch executes one action intent and returns the reply to render.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (*Reply, error) {
	switch ev.Kind {
	case KindCheckBalance:
		return d.checkBalance(ctx, ev)
	case KindClaimDaily:
		return d.claimDaily(ctx, ev)
	case KindTransfer:
		return d.transfer(ctx, ev)
	case KindAdminGrant:
		return d.adminGrant(ctx, ev)
	case KindStartSnake:
		return d.startSnake(ev)
	case KindSnakeMove:
		return d.snakeMove(ctx, ev)
	case KindStartBlackjack:
		return d.startBlackjack(ctx, ev)
	case KindStartRoulette:
		return d.startRoulette(ctx, ev)
	case KindHit:
		return d.applySession(ctx, ev.ActorID, game.ActionHit)
	case KindStand:
		return d.applySession(ctx, ev.ActorID, game.ActionStand)
	case KindQuit:
		return d.applySession(ctx, ev.ActorID, game.ActionQuit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, ev.Kind)
	}
}

func (d *Dispatcher) checkBalance(ctx context.Context, ev Event) (*Reply, error) {
	balance, err := d.ledger.GetBalance(ctx, ev.ActorID)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: fmt.Sprintf("You have %d coins.", balance)}, nil
}

func (d *Dispatcher) claimDaily(ctx context.Context, ev Event) (*Reply, error) {
	if _, err := d.ledger.ClaimDaily(ctx, ev.ActorID, d.now()); err != nil {
		return nil, err
	}
	return &Reply{Text: fmt.Sprintf("You claimed %d coins!", d.ledger.DailyReward())}, nil
}

func (d *Dispatcher) transfer(ctx context.Context, ev Event) (*Reply, error) {
	if err := d.ledger.Transfer(ctx, ev.ActorID, ev.Params.ToUser, ev.Params.Amount); err != nil {
		return nil, err
	}
	return &Reply{Text: fmt.Sprintf("Sent %d coins to user %d.", ev.Params.Amount, ev.Params.ToUser)}, nil
}

// adminGrant credits coins to any user. Only the configured privileged
// identity may use it.
func (d *Dispatcher) adminGrant(ctx context.Context, ev Event) (*Reply, error) {
	if !d.cfg.IsPrivileged(ev.ActorID) {
		return nil, service.ErrForbidden
	}
	if _, err := d.ledger.Grant(ctx, ev.Params.ToUser, ev.Params.Amount); err != nil {
		return nil, err
	}
	log.Info().
		Int64("actor_id", ev.ActorID).
		Int64("to_user", ev.Params.ToUser).
		Int64("amount", ev.Params.Amount).
		Msg("Admin grant issued")
	return &Reply{Text: fmt.Sprintf("Gave %d coins to user %d.", ev.Params.Amount, ev.Params.ToUser)}, nil
}

func (d *Dispatcher) startSnake(ev Event) (*Reply, error) {
	sess := snake.New(ev.ActorID, d.rng)
	render, err := d.registry.Start(sess)
	if err != nil {
		return nil, err
	}
	return replyFromRender(render), nil
}

func (d *Dispatcher) snakeMove(ctx context.Context, ev Event) (*Reply, error) {
	action, ok := map[string]game.Action{
		"left":  game.ActionLeft,
		"right": game.ActionRight,
		"up":    game.ActionUp,
		"down":  game.ActionDown,
	}[ev.Params.Direction]
	if !ok {
		return nil, ErrUnknownDirection
	}
	return d.applySession(ctx, ev.ActorID, action)
}

// startBlackjack debits the wager first, then deals the hand. If the
// session cannot be registered after the debit, the stake is returned.
func (d *Dispatcher) startBlackjack(ctx context.Context, ev Event) (*Reply, error) {
	if _, err := d.registry.Get(ev.ActorID); err == nil {
		return nil, game.ErrAlreadyActive
	}

	ref, err := d.ledger.Wager(ctx, ev.ActorID, ev.Params.Bet, model.EntryTypeBlackjackBet)
	if err != nil {
		return nil, err
	}

	sess := blackjack.New(ev.ActorID, ev.Params.Bet, ref, d.ledger, d.rng)
	render, err := d.registry.Start(sess)
	if err != nil {
		// lost the race for the session slot: give the stake back
		if _, refundErr := d.ledger.SettleCredit(ctx, ev.ActorID, ev.Params.Bet, model.EntryTypeBlackjackPush, ref); refundErr != nil {
			return nil, refundErr
		}
		return nil, err
	}
	return replyFromRender(render), nil
}

func (d *Dispatcher) startRoulette(ctx context.Context, ev Event) (*Reply, error) {
	// validate before the debit; a bad color must not cost the bet
	color := roulette.Color(ev.Params.Color)
	if _, ok := roulette.Multipliers[color]; !ok {
		return nil, roulette.ErrInvalidColor
	}

	ref, err := d.ledger.Wager(ctx, ev.ActorID, ev.Params.Bet, model.EntryTypeRouletteBet)
	if err != nil {
		return nil, err
	}

	outcome, err := roulette.Resolve(color, ev.Params.Bet, d.cfg.IsPrivileged(ev.ActorID), d.rng)
	if err != nil {
		return nil, err
	}

	if !outcome.Won {
		return &Reply{Text: fmt.Sprintf("You lost. The ball landed on %s.", outcome.Result)}, nil
	}

	if _, err := d.ledger.SettleCredit(ctx, ev.ActorID, outcome.Payout, model.EntryTypeRouletteWin, ref); err != nil {
		return nil, err
	}
	return &Reply{Text: fmt.Sprintf("You won! The ball landed on %s.\nYou won %d coins!", outcome.Result, outcome.Payout)}, nil
}

func (d *Dispatcher) applySession(ctx context.Context, actorID int64, action game.Action) (*Reply, error) {
	render, err := d.registry.Apply(ctx, actorID, action)
	if err != nil {
		return nil, err
	}
	return replyFromRender(render), nil
}

func replyFromRender(r *game.Render) *Reply {
	return &Reply{Text: r.Text, Actions: r.Actions}
}
