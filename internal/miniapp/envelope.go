// Package miniapp authenticates and dispatches events sent by the Telegram
// mini app through web_app_data messages.
package miniapp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orlandnut/voicednut/internal/schema"
)

var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the outer document the mini app sends.
type Envelope struct {
	Action    string          `json:"action"`
	Timestamp *string         `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	InitData  string          `json:"initData"`
}

var envelopeSchema = schema.MustCompile("envelope", `{
  "type": "object",
  "required": ["action", "initData"],
  "properties": {
    "action": {"type": "string", "minLength": 1},
    "timestamp": {"type": "string"},
    "payload": true,
    "initData": {"type": "string", "minLength": 1}
  }
}`)

// ValidateEnvelope checks the structure of well-formed JSON. The payload is
// left untouched for per-action validation.
func ValidateEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := envelopeSchema.Decode(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return env, nil
}

// payloadOrEmpty treats an absent or null payload as an empty object.
func (e Envelope) payloadOrEmpty() []byte {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return []byte("{}")
	}
	return e.Payload
}
