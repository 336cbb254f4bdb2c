package miniapp

import (
	"errors"
	"fmt"
)

// Kind classifies why a dispatch did not deliver.
type Kind int

const (
	KindNone Kind = iota
	MalformedJSON
	InvalidEnvelope
	InvalidSession
	MissingUser
	InvalidUserPayload
	SessionMismatch
	UnknownAction
	InvalidPayload
	UnhandledFailure
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	MalformedJSON:      "malformed_json",
	InvalidEnvelope:    "invalid_envelope",
	InvalidSession:     "invalid_session",
	MissingUser:        "missing_user",
	InvalidUserPayload: "invalid_user_payload",
	SessionMismatch:    "session_mismatch",
	UnknownAction:      "unknown_action",
	InvalidPayload:     "invalid_payload",
	UnhandledFailure:   "unhandled_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by pipeline stages. Err holds the internal cause and is
// only ever logged.
type Error struct {
	Kind   Kind
	Action string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Action != "" {
		msg += " (" + e.Action + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, action string, err error) *Error {
	return &Error{Kind: kind, Action: action, Err: err}
}

// KindOf extracts the kind from err, falling back to UnhandledFailure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnhandledFailure
}

// UserMessage returns the text shown to the user for a rejection kind. It
// never includes internal detail.
func UserMessage(kind Kind, action string) string {
	switch kind {
	case MalformedJSON:
		return "❌ Unable to process data from the mini app"
	case InvalidEnvelope:
		return "❌ Received malformed payload from the mini app. Please try again."
	case InvalidSession:
		return "❌ Invalid mini app session. Please reopen the mini app from the bot."
	case MissingUser:
		return "❌ Mini app payload missing user information."
	case InvalidUserPayload:
		return "❌ Mini app payload has invalid user data."
	case SessionMismatch:
		return "❌ Mini app session mismatch. Please reopen the mini app from the bot."
	case InvalidPayload:
		return fmt.Sprintf("❌ Mini app sent invalid data for action %q. Please try again.", action)
	default:
		return "❌ Error processing WebApp data"
	}
}
