package miniapp

import (
	"context"
	"sort"

	"github.com/orlandnut/voicednut/internal/schema"
)

// Replier sends a message back to the user who opened the mini app.
type Replier interface {
	Reply(ctx context.Context, text string, mode ParseMode) error
}

// Meta is attached to every handler call.
type Meta struct {
	ServerTimestamp string
	ClientTimestamp *string
}

// HandlerFunc turns a validated payload into a notification.
type HandlerFunc[P any] func(ctx context.Context, r Replier, payload P, meta Meta) error

// Action is one entry of the dispatch table. Bind validates a raw payload and
// returns the handler call closed over the typed value.
type Action interface {
	Name() string
	Bind(raw []byte) (func(ctx context.Context, r Replier, meta Meta) error, error)
}

type action[P any] struct {
	name   string
	schema *schema.Schema
	handle HandlerFunc[P]
}

// NewAction pairs a payload schema with a typed handler.
func NewAction[P any](name string, s *schema.Schema, h HandlerFunc[P]) Action {
	return action[P]{name: name, schema: s, handle: h}
}

func (a action[P]) Name() string { return a.name }

func (a action[P]) Bind(raw []byte) (func(ctx context.Context, r Replier, meta Meta) error, error) {
	var p P
	if err := a.schema.Decode(raw, &p); err != nil {
		return nil, err
	}
	return func(ctx context.Context, r Replier, meta Meta) error {
		return a.handle(ctx, r, p, meta)
	}, nil
}

// Registry maps action names to their contracts. It is not modified after
// construction and is safe for concurrent lookups.
type Registry struct {
	actions map[string]Action
}

func NewRegistry(actions ...Action) *Registry {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		r.actions[a.Name()] = a
	}
	return r
}

func (r *Registry) Lookup(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
