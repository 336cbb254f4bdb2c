package miniapp

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/orlandnut/voicednut/internal/schema"
)

const (
	ActionCallInitiated = "call_initiated"
	ActionCallEnded     = "call_ended"
	ActionSMSSent       = "sms_sent"
	ActionUserAdded     = "user_added"
	ActionUserRemoved   = "user_removed"
)

type CallInitiated struct {
	CallSid string  `json:"callSid"`
	To      *string `json:"to"`
	Status  *string `json:"status"`
}

type CallEnded struct {
	CallSid  string   `json:"callSid"`
	Status   string   `json:"status"`
	Duration *float64 `json:"duration"`
}

type SMSSent struct {
	PhoneNumber string `json:"phoneNumber"`
	MessageID   string `json:"messageId"`
}

type UserAdded struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type UserRemoved struct {
	UserID string `json:"userId"`
}

var (
	callInitiatedSchema = schema.MustCompile(ActionCallInitiated, `{
  "type": "object",
  "required": ["callSid"],
  "properties": {
    "callSid": {"type": "string", "minLength": 1},
    "to": {"type": "string", "minLength": 1},
    "status": {"type": "string"}
  }
}`)

	callEndedSchema = schema.MustCompile(ActionCallEnded, `{
  "type": "object",
  "required": ["callSid", "status"],
  "properties": {
    "callSid": {"type": "string", "minLength": 1},
    "status": {"type": "string", "minLength": 1},
    "duration": {"type": "number", "minimum": 0}
  }
}`)

	smsSentSchema = schema.MustCompile(ActionSMSSent, `{
  "type": "object",
  "required": ["phoneNumber"],
  "properties": {
    "phoneNumber": {"type": "string", "minLength": 1},
    "messageId": {"type": "string"}
  }
}`)

	userAddedSchema = schema.MustCompile(ActionUserAdded, `{
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "username": {"type": "string"}
  }
}`)

	userRemovedSchema = schema.MustCompile(ActionUserRemoved, `{
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1}
  }
}`)
)

// DefaultRegistry returns the actions the mini app currently emits.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewAction(ActionCallInitiated, callInitiatedSchema, handleCallInitiated),
		NewAction(ActionCallEnded, callEndedSchema, handleCallEnded),
		NewAction(ActionSMSSent, smsSentSchema, handleSMSSent),
		NewAction(ActionUserAdded, userAddedSchema, handleUserAdded),
		NewAction(ActionUserRemoved, userRemovedSchema, handleUserRemoved),
	)
}

func handleCallInitiated(ctx context.Context, r Replier, p CallInitiated, meta Meta) error {
	target := "unknown"
	if p.To != nil {
		target = *p.To
	}
	status := "pending"
	if p.Status != nil {
		status = *p.Status
	}
	return r.Reply(ctx, lines(
		"📞 *Call initiated*",
		"• To: "+EscapeMarkdown(target),
		"• SID: `"+EscapeMarkdown(p.CallSid)+"`",
		"• Status: "+EscapeMarkdown(status),
		received(meta),
	), MarkdownV2)
}

func handleCallEnded(ctx context.Context, r Replier, p CallEnded, meta Meta) error {
	icon := "❌"
	if p.Status == "completed" {
		icon = "✅"
	}
	var seconds float64
	if p.Duration != nil {
		seconds = *p.Duration
	}
	return r.Reply(ctx, lines(
		icon+" *Call "+EscapeMarkdown(p.Status)+"*",
		"• SID: `"+EscapeMarkdown(p.CallSid)+"`",
		"• Duration: "+EscapeMarkdown(FormatDuration(seconds)),
		received(meta),
	), MarkdownV2)
}

func handleSMSSent(ctx context.Context, r Replier, p SMSSent, meta Meta) error {
	out := []string{
		"📱 *SMS sent*",
		"• To: " + EscapeMarkdown(p.PhoneNumber),
	}
	if p.MessageID != "" {
		out = append(out, "• Message ID: `"+EscapeMarkdown(p.MessageID)+"`")
	}
	out = append(out, received(meta))
	return r.Reply(ctx, lines(out...), MarkdownV2)
}

func handleUserAdded(ctx context.Context, r Replier, p UserAdded, meta Meta) error {
	out := []string{
		"👤 *User added*",
		"• ID: `" + EscapeMarkdown(p.UserID) + "`",
	}
	if p.Name != "" {
		out = append(out, "• Name: "+EscapeMarkdown(p.Name))
	}
	if p.Username != "" {
		out = append(out, "• Username: @"+EscapeMarkdown(p.Username))
	}
	out = append(out, received(meta))
	return r.Reply(ctx, lines(out...), MarkdownV2)
}

func handleUserRemoved(ctx context.Context, r Replier, p UserRemoved, meta Meta) error {
	return r.Reply(ctx, lines(
		"🚫 *User removed*",
		"• ID: `"+EscapeMarkdown(p.UserID)+"`",
		received(meta),
	), MarkdownV2)
}

// FormatDuration renders seconds as m:ss, or "n/a" for zero.
func FormatDuration(seconds float64) string {
	if seconds == 0 {
		return "n/a"
	}
	mins := math.Floor(seconds / 60)
	secs := strconv.FormatFloat(math.Mod(seconds, 60), 'f', -1, 64)
	if len(secs) < 2 {
		secs = "0" + secs
	}
	return strconv.FormatFloat(mins, 'f', -1, 64) + ":" + secs
}

func received(meta Meta) string {
	return "• Received: " + EscapeMarkdown(meta.ServerTimestamp)
}

func lines(parts ...string) string { return strings.Join(parts, "\n") }
