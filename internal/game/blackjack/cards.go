// Package blackjack implements the wagered blackjack game session.
package blackjack

import (
	"math/rand"
	"strings"
)

// Rank is a card rank. Suits are irrelevant to blackjack scoring, so the
// shoe collapses them: each rank appears four times.
type Rank string

// Card ranks.
const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

// ranks lists every rank once, in deal order before shuffling.
var ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// rankValues maps each rank to its base score. Aces start at 11 and are
// reduced one at a time while the hand is bust.
var rankValues = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7,
	Eight: 8, Nine: 9, Ten: 10, Jack: 10, Queen: 10, King: 10, Ace: 11,
}

// newShoe builds a shuffled 52-card shoe (4 of each rank).
func newShoe(rng *rand.Rand) []Rank {
	shoe := make([]Rank, 0, 52)
	for i := 0; i < 4; i++ {
		shoe = append(shoe, ranks...)
	}
	rng.Shuffle(len(shoe), func(i, j int) {
		shoe[i], shoe[j] = shoe[j], shoe[i]
	})
	return shoe
}

// Score computes the blackjack value of a hand: face values with J/Q/K at
// 10 and aces at 11, then while the total is over 21 each ace still counted
// as 11 drops to 1, one at a time.
func Score(hand []Rank) int {
	total := 0
	aces := 0
	for _, r := range hand {
		total += rankValues[r]
		if r == Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// formatHand renders a hand as space-separated ranks.
func formatHand(hand []Rank) string {
	parts := make([]string, len(hand))
	for i, r := range hand {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
