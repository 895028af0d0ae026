// Package protocol defines the framed JSON messages exchanged with agents
// over the duplex channel, and the error taxonomy shared with the REST
// surface.
package protocol

import "encoding/json"

// Version is the current protocol version, negotiated in the join response.
const (
	Version             = 1
	MinSupportedVersion = 1
)

// Inbound message types (agent -> server).
const (
	TypeAction = "action"
	TypePing   = "ping"
)

// Outbound message types (server -> agent or observer).
const (
	TypeGameState    = "game_state"
	TypeHandComplete = "hand_complete"
	TypeError        = "error"
	TypePong         = "pong"
)

// ClientMessage is any frame received from an agent.
type ClientMessage struct {
	Type      string `json:"type"`
	TurnToken string `json:"turn_token,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Amount    int    `json:"amount,omitempty"`
}

// ServerMessage is any frame sent to a subscriber. Payload carries the
// snapshot or hand result; Code/Message are set only for errors.
type ServerMessage struct {
	Type      string          `json:"type"`
	StateSeq  uint64          `json:"state_seq,omitempty"`
	TurnToken string          `json:"turn_token,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Code      Code            `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// NewGameState builds a game_state frame. The turn token is present only on
// the frame delivered to the seat whose turn it is.
func NewGameState(stateSeq uint64, turnToken string, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      TypeGameState,
		StateSeq:  stateSeq,
		TurnToken: turnToken,
		Payload:   mustMarshal(payload),
	}
}

// NewHandComplete builds a hand_complete frame.
func NewHandComplete(stateSeq uint64, payload any) *ServerMessage {
	return &ServerMessage{
		Type:     TypeHandComplete,
		StateSeq: stateSeq,
		Payload:  mustMarshal(payload),
	}
}

// NewError builds an error frame.
func NewError(err *Error) *ServerMessage {
	return &ServerMessage{Type: TypeError, Code: err.Code, Message: err.Message}
}

// Terminal reports whether a frame must never be dropped by a coalescing
// subscriber.
func (m *ServerMessage) Terminal() bool {
	return m.Type == TypeHandComplete
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("protocol: marshal payload: " + err.Error())
	}
	return b
}
