// Package game holds the server-side blackjack state: the session entity
// (Player), the per-room round state machine (Room), and the process-wide
// session/room directory (Lobby). All mutation happens on the server's event
// loop; the Sender interface is the only way game state reaches the wire.
package game

import (
	"math/rand"
	"strings"
)

var (
	cardSuits = []string{"H", "D", "C", "S"}
	cardRanks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
)

// RandomCard returns a uniformly random card such as "AH" or "10S". Cards are
// drawn with replacement; there is no shared shoe or depletion tracking.
func RandomCard() string {
	return cardRanks[rand.Intn(len(cardRanks))] + cardSuits[rand.Intn(len(cardSuits))]
}

// HandValue computes the blackjack value of a hand. Face cards count 10,
// numeric cards their face value, and aces count 11 but are demoted to 1 one
// at a time while the total exceeds 21.
//
// Parameters:
//   - cards: The hand, one rank+suit string per card
//
// Returns:
//   - The best hand total under the ace-demotion rule
func HandValue(cards []string) int {
	sum := 0
	aces := 0

	for _, card := range cards {
		rank := card[:len(card)-1]
		switch rank {
		case "A":
			sum += 11
			aces++
		case "K", "Q", "J", "10":
			sum += 10
		default:
			// Ranks 2-9 are single digits.
			sum += int(rank[0] - '0')
		}
	}

	for sum > 21 && aces > 0 {
		sum -= 10
		aces--
	}

	return sum
}

// IsBlackjack reports whether the hand is a natural: exactly two cards
// totalling 21.
func IsBlackjack(cards []string) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

// FormatHand renders a hand in wire form: cards joined by ";", or "NO" for an
// empty hand.
func FormatHand(cards []string) string {
	if len(cards) == 0 {
		return "NO"
	}

	return strings.Join(cards, ";")
}
