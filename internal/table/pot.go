package table

import "sort"

// Pot is a main or side pot. Eligible lists the seats that can win it.
type Pot struct {
	Amount   int   `json:"amount"`
	Eligible []int `json:"eligible"`
}

// BuildPots constructs the pot set from the seats' total contributions this
// hand. Contribution levels are the distinct all-in amounts ascending, plus
// the overall maximum; folded players contribute but are never eligible. A
// pot with a single eligible seat is an uncalled excess and is returned to
// that seat at settlement.
func BuildPots(seats []*Seat) []Pot {
	var levels []int
	maxContrib := 0
	for _, s := range seats {
		if s == nil || !s.InHand {
			continue
		}
		if s.TotalBet > maxContrib {
			maxContrib = s.TotalBet
		}
		if s.AllIn && !s.Folded && s.TotalBet > 0 {
			levels = append(levels, s.TotalBet)
		}
	}
	if maxContrib == 0 {
		return nil
	}
	levels = append(levels, maxContrib)
	sort.Ints(levels)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		if level == prev {
			continue
		}
		var pot Pot
		for _, s := range seats {
			if s == nil || !s.InHand {
				continue
			}
			contrib := min(s.TotalBet, level) - min(s.TotalBet, prev)
			pot.Amount += contrib
			if !s.Folded && s.TotalBet >= level {
				pot.Eligible = append(pot.Eligible, s.Index)
			}
		}
		if pot.Amount > 0 {
			pots = append(pots, pot)
		}
		prev = level
	}
	return pots
}

// potTotal sums all pot amounts.
func potTotal(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}
