package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandValue(t *testing.T) {
	cases := []struct {
		name string
		hand []string
		want int
	}{
		{"two aces", []string{"AH", "AS"}, 12},
		{"king and ace", []string{"KH", "AS"}, 21},
		{"no ace adjustment needed", []string{"5H", "6D", "KC"}, 21},
		{"four aces", []string{"AH", "AD", "AC", "AS"}, 14},
		{"face cards are ten", []string{"KH", "QD", "JS"}, 30},
		{"ten rank", []string{"10H", "9D", "2C"}, 21},
		{"ace demoted once", []string{"AH", "9D", "5C"}, 15},
		{"numeric hand", []string{"2H", "3D", "4C"}, 9},
		{"empty hand", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HandValue(tc.hand))
		})
	}
}

func TestIsBlackjack(t *testing.T) {
	assert.True(t, IsBlackjack([]string{"AH", "KS"}))
	assert.True(t, IsBlackjack([]string{"10D", "AC"}))
	assert.False(t, IsBlackjack([]string{"KH", "QS"}), "twenty is not a natural")
	assert.False(t, IsBlackjack([]string{"7H", "7D", "7C"}), "three-card 21 is not a natural")
	assert.False(t, IsBlackjack(nil))
}

func TestFormatHand(t *testing.T) {
	assert.Equal(t, "NO", FormatHand(nil))
	assert.Equal(t, "AH", FormatHand([]string{"AH"}))
	assert.Equal(t, "AH;10S;3C", FormatHand([]string{"AH", "10S", "3C"}))
}

func TestRandomCard(t *testing.T) {
	suits := map[byte]bool{'H': true, 'D': true, 'C': true, 'S': true}
	ranks := map[string]bool{}
	for _, r := range cardRanks {
		ranks[r] = true
	}

	for i := 0; i < 200; i++ {
		card := RandomCard()
		assert.True(t, suits[card[len(card)-1]], "bad suit in %q", card)
		assert.True(t, ranks[card[:len(card)-1]], "bad rank in %q", card)
	}
}
