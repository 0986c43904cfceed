// Package event parses billing provider events and decides which of them
// change a tenant's billing state. Both the webhook endpoint and the Kafka
// consumer use it so the two ingress paths agree on what triggers a sync.
package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedEvent is returned for payloads that are not a provider event,
// or for relevant events that do not name a customer.
var ErrMalformedEvent = errors.New("malformed billing event")

// relevantPrefixes are the event families that can change billing state
var relevantPrefixes = []string{
	"customer.subscription.",
	"invoice.",
	"checkout.session.",
	"payment_intent.",
}

// customerEvents carry the customer itself as data.object
var customerEvents = map[string]bool{
	"customer.updated": true,
	"customer.deleted": true,
}

// Event is the part of a provider event the synchronizer cares about.
type Event struct {
	ID       string
	Type     string
	EntityID string
	relevant bool
}

// Relevant reports whether the event should trigger a sync of EntityID.
func (e *Event) Relevant() bool {
	return e.relevant
}

// IsRelevantType reports whether events of the given type change billing state.
func IsRelevantType(eventType string) bool {
	if customerEvents[eventType] {
		return true
	}
	for _, prefix := range relevantPrefixes {
		if strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}

// Parse extracts the event id, type and customer from a raw event body.
// Irrelevant events are returned without an entity id and without error.
func Parse(body []byte) (*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedEvent)
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	typ := root.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	ev := &Event{
		ID:   root.Get("id").String(),
		Type: typ.Str,
	}
	if !IsRelevantType(ev.Type) {
		return ev, nil
	}

	entityID := customerID(root, ev.Type)
	if entityID == "" {
		return nil, fmt.Errorf("%w: %s event %q has no customer", ErrMalformedEvent, ev.Type, ev.ID)
	}

	ev.EntityID = entityID
	ev.relevant = true
	return ev, nil
}

func customerID(root gjson.Result, eventType string) string {
	if customerEvents[eventType] {
		return strings.TrimSpace(root.Get("data.object.id").String())
	}

	customer := root.Get("data.object.customer")
	switch {
	case customer.Type == gjson.String:
		return strings.TrimSpace(customer.Str)
	case customer.IsObject():
		// Expanded customer object
		return strings.TrimSpace(customer.Get("id").String())
	default:
		return ""
	}
}
