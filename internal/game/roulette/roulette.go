// Package roulette implements the stateless color-roulette resolver.
package roulette

import (
	"errors"
	"math/rand"
	"time"
)

// Color is a roulette bet color.
type Color string

// Bet colors.
const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// Sampling weights out of 100 for standard mode.
const (
	weightRed   = 47
	weightBlack = 47
	weightGreen = 6
)

// privilegedWinChance is the forced-win probability (out of 100) for the
// configured privileged identity. Asymmetric odds for that one account are
// a deliberate product decision, not house math.
const privilegedWinChance = 80

// Multipliers maps each color to its payout multiplier, applied only when
// the result matches the chosen color.
var Multipliers = map[Color]int64{
	Red:   2,
	Black: 2,
	Green: 15,
}

// colors in weight order.
var colors = []Color{Red, Black, Green}

// Resolver errors.
var (
	ErrInvalidColor = errors.New("color must be red, black or green")
	ErrInvalidBet   = errors.New("bet must be positive")
)

// Outcome is the ephemeral result of one resolution. Payout is the credit
// due on a win (bet times multiplier) and zero on a loss; the bet itself
// was already debited by the caller.
type Outcome struct {
	Chosen Color
	Result Color
	Bet    int64
	Payout int64
	Won    bool
}

// Resolve maps a chosen color, bet and fairness mode to an outcome. The
// caller has already validated the balance and debited the bet exactly
// once; on a win the caller issues exactly one ledger credit of Payout.
// A nil rng gets a time-seeded one.
func Resolve(chosen Color, bet int64, privileged bool, rng *rand.Rand) (*Outcome, error) {
	if _, ok := Multipliers[chosen]; !ok {
		return nil, ErrInvalidColor
	}
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var result Color
	if privileged {
		result = spinPrivileged(chosen, rng)
	} else {
		result = spin(rng)
	}

	out := &Outcome{Chosen: chosen, Result: result, Bet: bet}
	if result == chosen {
		out.Won = true
		out.Payout = bet * Multipliers[chosen]
	}
	return out, nil
}

// spin samples a color with the standard 47/47/6 weights.
func spin(rng *rand.Rand) Color {
	roll := rng.Intn(weightRed + weightBlack + weightGreen)
	switch {
	case roll < weightRed:
		return Red
	case roll < weightRed+weightBlack:
		return Black
	default:
		return Green
	}
}

// spinPrivileged forces the chosen color with privilegedWinChance odds;
// otherwise it samples uniformly until landing on one of the two other
// colors, so a forced loss can never draw the chosen color.
func spinPrivileged(chosen Color, rng *rand.Rand) Color {
	if rng.Intn(100) < privilegedWinChance {
		return chosen
	}
	for {
		result := colors[rng.Intn(len(colors))]
		if result != chosen {
			return result
		}
	}
}
