// Package event defines the typed, append-only per-table event stream that
// serializes hand progression. Given the table seed, the stream fully
// determines hand outcomes.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies a table event.
type Type string

const (
	TypeTableStarted  Type = "TABLE_STARTED"
	TypeTableEnded    Type = "TABLE_ENDED"
	TypePlayerJoined  Type = "PLAYER_JOINED"
	TypePlayerLeft    Type = "PLAYER_LEFT"
	TypeHandStart     Type = "HAND_START"
	TypePlayerAction  Type = "PLAYER_ACTION"
	TypePlayerTimeout Type = "PLAYER_TIMEOUT"
	TypeStreetDealt   Type = "STREET_DEALT"
	TypeShowdown      Type = "SHOWDOWN"
	TypePotAwarded    Type = "POT_AWARDED"
	TypeHandComplete  Type = "HAND_COMPLETE"
)

// Event is one entry in a table's log. Seq is strictly increasing and
// gapless per table, starting at 1. HandNumber is zero for events outside a
// hand (joins, leaves, table lifecycle).
type Event struct {
	TableID    string          `json:"table_id"`
	Seq        uint64          `json:"seq"`
	HandNumber uint64          `json:"hand_number,omitempty"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Payloads. Amounts are chips; seats are seat indexes.

type HandStartPayload struct {
	HandNumber uint64         `json:"hand_number"`
	DealerSeat int            `json:"dealer_seat"`
	SBSeat     int            `json:"sb_seat"`
	BBSeat     int            `json:"bb_seat"`
	SmallBlind int            `json:"small_blind"`
	BigBlind   int            `json:"big_blind"`
	Stacks     map[string]int `json:"stacks"` // seat -> stack before blinds
}

type PlayerActionPayload struct {
	Seat      int    `json:"seat"`
	AgentID   string `json:"agent_id"`
	Kind      string `json:"kind"`
	Amount    int    `json:"amount,omitempty"`
	Street    string `json:"street"`
	IsTimeout bool   `json:"is_timeout,omitempty"`
	Pot       int    `json:"pot"`
}

type PlayerTimeoutPayload struct {
	Seat      int    `json:"seat"`
	AgentID   string `json:"agent_id"`
	TimeoutMS int    `json:"timeout_ms"`
}

type StreetDealtPayload struct {
	Street string   `json:"street"`
	Cards  []string `json:"cards"`
	Board  []string `json:"board"`
}

type ShowdownPayload struct {
	Board []string        `json:"board"`
	Hands []ShowdownEntry `json:"hands"`
}

type ShowdownEntry struct {
	Seat      int      `json:"seat"`
	AgentID   string   `json:"agent_id"`
	HoleCards []string `json:"hole_cards"`
	HandRank  string   `json:"hand_rank"`
}

type PotAwardedPayload struct {
	PotIndex int   `json:"pot_index"`
	Amount   int   `json:"amount"`
	Seats    []int `json:"seats"`
	Shares   []int `json:"shares"`
}

type HandCompletePayload struct {
	HandNumber uint64         `json:"hand_number"`
	Stacks     map[string]int `json:"stacks"` // seat -> stack after settlement
}

type PlayerJoinedPayload struct {
	Seat    int    `json:"seat"`
	AgentID string `json:"agent_id"`
	Stack   int    `json:"stack"`
}

type PlayerLeftPayload struct {
	Seat    int    `json:"seat"`
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

// Marshal encodes a payload, panicking on the unreachable error path since
// every payload type above is marshalable.
func Marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("event: marshal payload: " + err.Error())
	}
	return b
}
