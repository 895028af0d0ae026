// Package poker implements cards, decks and hand evaluation for Texas
// Hold'em.
package poker

import (
	"fmt"
	"strings"
)

// Card is a single playing card encoded as suit*13 + rank.
type Card uint8

// Ranks, ascending. Ace is high; the evaluator handles the wheel.
const (
	Two uint8 = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Suits.
const (
	Spades uint8 = iota
	Hearts
	Diamonds
	Clubs
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "shdc"
)

// NewCard builds a card from a rank (0-12) and suit (0-3).
func NewCard(rank, suit uint8) Card {
	return Card(suit*13 + rank)
}

// Rank returns the card's rank, 0 (two) through 12 (ace).
func (c Card) Rank() uint8 {
	return uint8(c) % 13
}

// Suit returns the card's suit, 0 through 3.
func (c Card) Suit() uint8 {
	return uint8(c) / 13
}

// String renders the card in compact notation, e.g. "As" or "Td".
func (c Card) String() string {
	return string(rankChars[c.Rank()]) + string(suitChars[c.Suit()])
}

// ParseCard parses compact notation like "As", "Td" or "2c".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid card %q", s)
	}
	rank := strings.IndexByte(rankChars, s[0])
	if rank < 0 {
		return 0, fmt.Errorf("invalid rank in %q", s)
	}
	suit := strings.IndexByte(suitChars, s[1])
	if suit < 0 {
		return 0, fmt.Errorf("invalid suit in %q", s)
	}
	return NewCard(uint8(rank), uint8(suit)), nil
}

// MustParseCard is ParseCard for literals in tests and tables.
func MustParseCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCards parses a space-separated card list like "As Kd Qh".
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Strings renders cards in compact notation.
func Strings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
