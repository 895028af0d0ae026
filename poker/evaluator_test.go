package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCards(t *testing.T, s string) []Card {
	t.Helper()
	cards, err := ParseCards(s)
	require.NoError(t, err)
	return cards
}

func TestEvaluateCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cards string
		want  Category
	}{
		{"high card", "As Kd 9h 7c 5s 3d 2c", HighCard},
		{"pair", "As Ad 9h 7c 5s 3d 2c", Pair},
		{"two pair", "As Ad 9h 9c 5s 3d 2c", TwoPair},
		{"trips", "As Ad Ah 9c 5s 3d 2c", Trips},
		{"straight", "9s 8d 7h 6c 5s Ad 2c", Straight},
		{"wheel straight", "As 2d 3h 4c 5s 9d Jc", Straight},
		{"broadway", "As Kd Qh Jc Ts 3d 2c", Straight},
		{"flush", "As Js 9s 7s 5s 3d 2c", Flush},
		{"full house", "As Ad Ah 9c 9s 3d 2c", FullHouse},
		{"double trips is a full house", "As Ad Ah 9c 9s 9d 2c", FullHouse},
		{"quads", "As Ad Ah Ac 5s 3d 2c", Quads},
		{"straight flush", "9s 8s 7s 6s 5s Ad 2c", StraightFlush},
		{"steel wheel", "As 2s 3s 4s 5s 9d Jc", StraightFlush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Evaluate(mustCards(t, tt.cards))
			assert.Equal(t, tt.want, got.Category, "got %v", got)
		})
	}
}

func TestWheelRanksBelowOtherStraights(t *testing.T) {
	t.Parallel()

	wheel := Evaluate(mustCards(t, "As 2d 3h 4c 5s 9d Jc"))
	six := Evaluate(mustCards(t, "2d 3h 4c 5s 6d 9s Jc"))

	assert.Equal(t, uint8(Five), wheel.Tiebreaks[0])
	assert.Equal(t, 1, Compare(six, wheel))
}

func TestCompareKickers(t *testing.T) {
	t.Parallel()

	// Same pair of aces, king kicker vs queen kicker.
	a := Evaluate(mustCards(t, "As Ad Kh 7c 5s 3d 2c"))
	b := Evaluate(mustCards(t, "Ah Ac Qh 7d 5c 3s 2d"))
	assert.Equal(t, 1, Compare(a, b))
	assert.Equal(t, -1, Compare(b, a))
}

func TestCompareExactTie(t *testing.T) {
	t.Parallel()

	// Both play the board.
	board := "As Kd Qh Jc 9s"
	a := Evaluate(mustCards(t, board+" 2c 3d"))
	b := Evaluate(mustCards(t, board+" 2h 3s"))
	assert.Equal(t, 0, Compare(a, b))
}

func TestEvaluateBestFiveOfSeven(t *testing.T) {
	t.Parallel()

	// Flush on the board beats the pocket pair's two-pair reading.
	v := Evaluate(mustCards(t, "As Js 9s 7s 5s Ad Ac"))
	assert.Equal(t, Flush, v.Category)
	assert.Equal(t, uint8(Ace), v.Tiebreaks[0])
}

func TestEvaluateFiveCards(t *testing.T) {
	t.Parallel()

	v := Evaluate(mustCards(t, "As Ad 9h 7c 5s"))
	assert.Equal(t, Pair, v.Category)
	assert.Equal(t, uint8(Ace), v.Tiebreaks[0])
	assert.Equal(t, uint8(Nine), v.Tiebreaks[1])
}
