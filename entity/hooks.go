package entity

import (
	"context"
	"slices"
)

// HookFunc handles one lifecycle event. Returning nil data keeps the current
// payload.
type HookFunc func(ctx context.Context, data PlainData) (PlainData, error)

// HookSet is an embeddable TriggerHook implementation. The zero value has no
// handlers. Register handlers before the entity is shared between goroutines.
type HookSet struct {
	handlers map[Hook][]HookFunc
}

// On registers fn for event. Handlers run in registration order.
func (h *HookSet) On(event Hook, fn HookFunc) {
	if h.handlers == nil {
		h.handlers = make(map[Hook][]HookFunc)
	}
	h.handlers[event] = append(h.handlers[event], fn)
}

// Handles reports whether any handler is registered for event.
func (h *HookSet) Handles(event Hook) bool {
	return len(h.handlers[event]) > 0
}

// TriggerHook runs the handlers for event, feeding each the payload left by
// the previous one. It returns nil when no handler replaced the payload. The
// first handler error stops the chain and is returned as is.
func (h *HookSet) TriggerHook(ctx context.Context, event Hook, payload PlainData) (PlainData, error) {
	current := payload
	replaced := false
	for _, fn := range slices.Clone(h.handlers[event]) {
		out, err := fn(ctx, current)
		if err != nil {
			return nil, err
		}
		if out != nil {
			current = out
			replaced = true
		}
	}
	if !replaced {
		return nil, nil
	}
	return current, nil
}
