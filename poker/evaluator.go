package poker

import (
	"math/bits"
)

// Category enumerates hand categories ordered from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	Trips
	Straight
	Flush
	FullHouse
	Quads
	StraightFlush
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case Trips:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case Quads:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandValue is the strength of a best-five-card hand: a category plus up to
// five tiebreak ranks in significance order. Values compare totally via
// Compare. The evaluator is pure; identical inputs yield identical values.
type HandValue struct {
	Category  Category
	Tiebreaks [5]uint8
}

// Compare returns 1 if a beats b, -1 if b beats a, 0 on an exact tie.
func Compare(a, b HandValue) int {
	if a.Category != b.Category {
		if a.Category > b.Category {
			return 1
		}
		return -1
	}
	for i := range a.Tiebreaks {
		if a.Tiebreaks[i] != b.Tiebreaks[i] {
			if a.Tiebreaks[i] > b.Tiebreaks[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Evaluate returns the best five-card hand value among the given cards.
// Accepts five to seven cards; duplicate cards are a caller bug.
func Evaluate(cards []Card) HandValue {
	var suitMasks [4]uint16
	var counts [13]uint8
	for _, c := range cards {
		suitMasks[c.Suit()] |= 1 << c.Rank()
		counts[c.Rank()]++
	}
	rankMask := suitMasks[0] | suitMasks[1] | suitMasks[2] | suitMasks[3]

	// With at most seven cards only one suit can hold a flush.
	for _, sm := range suitMasks {
		if bits.OnesCount16(sm) >= 5 {
			if high := straightHigh(sm); high > 0 {
				return HandValue{Category: StraightFlush, Tiebreaks: [5]uint8{high}}
			}
			return HandValue{Category: Flush, Tiebreaks: topRanks(sm, 5)}
		}
	}

	var quadRank, tripHigh, tripLow int = -1, -1, -1
	var pairs []uint8
	for r := 12; r >= 0; r-- {
		switch counts[r] {
		case 4:
			quadRank = r
		case 3:
			if tripHigh < 0 {
				tripHigh = r
			} else if tripLow < 0 {
				tripLow = r
			}
		case 2:
			pairs = append(pairs, uint8(r))
		}
	}

	if quadRank >= 0 {
		kickers := topRanks(rankMask&^(1<<quadRank), 1)
		return HandValue{Category: Quads, Tiebreaks: [5]uint8{uint8(quadRank), kickers[0]}}
	}

	if tripHigh >= 0 {
		// A second trips counts as the pair of a full house.
		pairRank := -1
		if len(pairs) > 0 {
			pairRank = int(pairs[0])
		}
		if tripLow > pairRank {
			pairRank = tripLow
		}
		if pairRank >= 0 {
			return HandValue{Category: FullHouse, Tiebreaks: [5]uint8{uint8(tripHigh), uint8(pairRank)}}
		}
	}

	if high := straightHigh(rankMask); high > 0 {
		return HandValue{Category: Straight, Tiebreaks: [5]uint8{high}}
	}

	if tripHigh >= 0 {
		kickers := topRanks(rankMask&^(1<<tripHigh), 2)
		return HandValue{Category: Trips, Tiebreaks: [5]uint8{uint8(tripHigh), kickers[0], kickers[1]}}
	}

	if len(pairs) >= 2 {
		used := uint16(1<<pairs[0] | 1<<pairs[1])
		kickers := topRanks(rankMask&^used, 1)
		return HandValue{Category: TwoPair, Tiebreaks: [5]uint8{pairs[0], pairs[1], kickers[0]}}
	}

	if len(pairs) == 1 {
		kickers := topRanks(rankMask&^(1<<pairs[0]), 3)
		return HandValue{Category: Pair, Tiebreaks: [5]uint8{pairs[0], kickers[0], kickers[1], kickers[2]}}
	}

	return HandValue{Category: HighCard, Tiebreaks: topRanks(rankMask, 5)}
}

// straightHigh returns the high-card rank of the best straight in the rank
// mask, or 0 when none. The wheel A-2-3-4-5 reports Five (rank 3) so it sorts
// below every other straight.
func straightHigh(mask uint16) uint8 {
	const wheel = 1<<Ace | 1<<Two | 1<<Three | 1<<Four | 1<<Five

	// Cascade finds runs of five consecutive set bits in one pass.
	seq := mask & (mask >> 1) & (mask >> 2) & (mask >> 3) & (mask >> 4)
	if seq != 0 {
		return uint8(bits.Len16(seq)-1) + 4
	}
	if mask&wheel == wheel {
		return Five
	}
	return 0
}

// topRanks returns the n highest ranks set in mask, descending. Missing
// positions are zero-filled, which only happens on malformed input.
func topRanks(mask uint16, n int) [5]uint8 {
	var out [5]uint8
	for i := 0; i < n && mask != 0; i++ {
		top := uint8(bits.Len16(mask) - 1)
		out[i] = top
		mask &^= 1 << top
	}
	return out
}
