package domain

import (
	"fmt"
	"time"
)

// PhaseKind tags the processing phase of the grocery list
type PhaseKind int

const (
	PhaseKindIdle PhaseKind = iota
	PhaseKindLoading
	PhaseKindReady
	PhaseKindError
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseKindIdle:
		return "idle"
	case PhaseKindLoading:
		return "loading"
	case PhaseKindReady:
		return "ready"
	case PhaseKindError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON payloads
func (k PhaseKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText
func (k *PhaseKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*k = PhaseKindIdle
	case "loading":
		*k = PhaseKindLoading
	case "ready":
		*k = PhaseKindReady
	case "error":
		*k = PhaseKindError
	default:
		return fmt.Errorf("unknown phase kind %q", text)
	}
	return nil
}

// Phase is the tagged processing state. Message is only set for PhaseKindError.
type Phase struct {
	Kind    PhaseKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

func PhaseIdle() Phase    { return Phase{Kind: PhaseKindIdle} }
func PhaseLoading() Phase { return Phase{Kind: PhaseKindLoading} }
func PhaseReady() Phase   { return Phase{Kind: PhaseKindReady} }

func PhaseError(message string) Phase {
	return Phase{Kind: PhaseKindError, Message: message}
}

// GroceryState is the published grocery list together with its phase.
// Cycle identifies the image-processing run that produced it.
type GroceryState struct {
	Cycle uint64        `json:"cycle"`
	Phase Phase         `json:"phase"`
	Items []GroceryItem `json:"items"`
}

// NotificationKind separates informational toasts from failures
type NotificationKind string

const (
	NotificationInfo  NotificationKind = "info"
	NotificationError NotificationKind = "error"
)

// Notification is a transient, user-facing message
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Message  string           `json:"message"`
	ItemName string           `json:"itemName,omitempty"`
	Cycle    uint64           `json:"cycle,omitempty"`
	At       time.Time        `json:"at"`
}

// AggregateState is a point-in-time view over every published stream
type AggregateState struct {
	Groceries       GroceryState      `json:"groceries"`
	Recommendations RecommendationMap `json:"recommendations"`
	Cart            CartView          `json:"cart"`
	LastError       string            `json:"lastError,omitempty"`
}
