package protocol

import "fmt"

// Code is a machine-readable error code delivered to clients on both the
// REST surface and the duplex channel.
type Code string

const (
	// Protocol
	CodeOutdatedClient  Code = "OUTDATED_CLIENT"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Auth
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeInvalidAPIKey  Code = "INVALID_API_KEY"
	CodeSessionExpired Code = "SESSION_EXPIRED"
	CodeInvalidSession Code = "INVALID_SESSION"

	// State
	CodeNotYourTurn       Code = "NOT_YOUR_TURN"
	CodeInvalidAction     Code = "INVALID_ACTION"
	CodeStaleSeq          Code = "STALE_SEQ"
	CodeInvalidTableState Code = "INVALID_TABLE_STATE"
	CodeTableEnded        Code = "TABLE_ENDED"
	CodeTableFull         Code = "TABLE_FULL"
	CodeTableNotFound     Code = "TABLE_NOT_FOUND"
	CodeNotSeated         Code = "NOT_SEATED"
	CodeAlreadySeated     Code = "ALREADY_SEATED"
	CodeAgentNotFound     Code = "AGENT_NOT_FOUND"

	// Infra
	CodeInternalError     Code = "INTERNAL_ERROR"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeSlowConsumer      Code = "SLOW_CONSUMER"
)

// Error is a client-visible error. Validation and state errors never mutate
// table state; infra errors after a mutation are fatal to the connection
// only.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a protocol error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error code to a REST status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized, CodeInvalidAPIKey, CodeSessionExpired, CodeInvalidSession:
		return 401
	case CodeTableNotFound, CodeAgentNotFound:
		return 404
	case CodeTableFull, CodeAlreadySeated, CodeInvalidTableState, CodeTableEnded:
		return 409
	case CodeValidationError, CodeOutdatedClient, CodeNotYourTurn, CodeInvalidAction,
		CodeStaleSeq, CodeNotSeated:
		return 400
	case CodeRateLimitExceeded:
		return 429
	default:
		return 500
	}
}
