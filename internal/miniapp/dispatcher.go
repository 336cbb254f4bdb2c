package miniapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orlandnut/voicednut/internal/initdata"
	"github.com/orlandnut/voicednut/internal/metrics"
)

// State is the terminal state of one dispatch.
type State int

const (
	Delivered State = iota
	Rejected
	Ignored
)

func (s State) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Ignored:
		return "ignored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Inbound is one web_app_data message as seen by the transport. SenderID is
// the sender the chat platform authenticated, not anything the mini app sent.
type Inbound struct {
	Data     []byte
	SenderID int64
	SentAt   time.Time
}

type Outcome struct {
	State  State
	Kind   Kind
	Action string
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Dispatcher runs the verification pipeline for inbound mini-app messages.
type Dispatcher struct {
	verifier *initdata.Verifier
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(verifier *initdata.Verifier, registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		verifier: verifier,
		registry: registry,
		log:      logger.With().Str("component", "miniapp").Logger(),
		now:      time.Now,
	}
}

// Dispatch processes one message and replies through r. It never panics and
// never returns internal errors to the user.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound, r Replier) (out Outcome) {
	start := time.Now()
	log := d.log.With().
		Str("dispatch_id", uuid.NewString()).
		Int64("sender_id", in.SenderID).
		Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("action", out.Action).Msg("mini app dispatch panicked")
			out = Outcome{State: Rejected, Kind: UnhandledFailure, Action: out.Action}
			d.reply(ctx, log, r, UserMessage(UnhandledFailure, ""), PlainText)
		}
		d.observe(out, time.Since(start))
	}()

	handle, meta, action, err := d.prepare(in)
	out.Action = action
	if err != nil {
		kind := KindOf(err)
		if kind == UnknownAction {
			log.Warn().Str("action", action).Msg("received unhandled mini app action")
			return Outcome{State: Ignored, Kind: UnknownAction, Action: action}
		}
		log.Warn().Err(err).Str("kind", kind.String()).Str("action", action).Msg("mini app message rejected")
		d.reply(ctx, log, r, UserMessage(kind, action), PlainText)
		return Outcome{State: Rejected, Kind: kind, Action: action}
	}

	if err := handle(ctx, r, meta); err != nil {
		log.Error().Err(err).Str("action", action).Msg("mini app handler failed")
		d.reply(ctx, log, r, UserMessage(UnhandledFailure, ""), PlainText)
		return Outcome{State: Rejected, Kind: UnhandledFailure, Action: action}
	}
	log.Info().Str("action", action).Msg("mini app action delivered")
	return Outcome{State: Delivered, Action: action}
}

// prepare runs every validation stage and returns the bound handler.
func (d *Dispatcher) prepare(in Inbound) (func(context.Context, Replier, Meta) error, Meta, string, error) {
	if !json.Valid(in.Data) {
		return nil, Meta{}, "", fail(MalformedJSON, "", errors.New("web_app_data is not valid JSON"))
	}

	env, err := ValidateEnvelope(in.Data)
	if err != nil {
		return nil, Meta{}, "", fail(InvalidEnvelope, "", err)
	}

	if !d.verifier.Verify(env.InitData) {
		return nil, Meta{}, env.Action, fail(InvalidSession, env.Action, errors.New("initData signature mismatch"))
	}

	fields, err := initdata.Parse(env.InitData)
	if err != nil {
		return nil, Meta{}, env.Action, fail(InvalidUserPayload, env.Action, err)
	}
	user, err := initdata.ParseUser(fields)
	switch {
	case errors.Is(err, initdata.ErrMissingUser):
		return nil, Meta{}, env.Action, fail(MissingUser, env.Action, err)
	case err != nil:
		return nil, Meta{}, env.Action, fail(InvalidUserPayload, env.Action, err)
	}

	if user.ID != in.SenderID {
		return nil, Meta{}, env.Action, fail(SessionMismatch, env.Action,
			fmt.Errorf("mini app user %d, telegram sender %d", user.ID, in.SenderID))
	}

	act, ok := d.registry.Lookup(env.Action)
	if !ok {
		return nil, Meta{}, env.Action, fail(UnknownAction, env.Action, nil)
	}

	handle, err := act.Bind(env.payloadOrEmpty())
	if err != nil {
		return nil, Meta{}, env.Action, fail(InvalidPayload, env.Action, err)
	}
	return handle, d.meta(in, env), env.Action, nil
}

func (d *Dispatcher) meta(in Inbound, env Envelope) Meta {
	sent := in.SentAt
	if sent.IsZero() {
		sent = d.now()
	}
	return Meta{
		ServerTimestamp: sent.UTC().Format(timestampLayout),
		ClientTimestamp: env.Timestamp,
	}
}

func (d *Dispatcher) reply(ctx context.Context, log zerolog.Logger, r Replier, text string, mode ParseMode) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("send mini app rejection panicked")
		}
	}()
	if err := r.Reply(ctx, text, mode); err != nil {
		log.Error().Err(err).Msg("send mini app rejection")
	}
}

func (d *Dispatcher) observe(out Outcome, elapsed time.Duration) {
	action := out.Action
	if _, ok := d.registry.Lookup(action); !ok {
		action = "unknown"
	}
	metrics.DispatchTotal.WithLabelValues(out.State.String(), out.Kind.String(), action).Inc()
	metrics.DispatchDuration.WithLabelValues(out.State.String()).Observe(elapsed.Seconds())
}
