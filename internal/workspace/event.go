package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is a payload delivered to a workspace user.
type Event struct {
	// ID uniquely identifies the delivery, independent of the payload contents
	ID string
	// Payload is the event body as received
	Payload map[string]interface{}
	// ReceivedAt is when the event was delivered to the user
	ReceivedAt time.Time

	processed atomic.Bool
}

// NewEvent creates an unprocessed event for payload.
func NewEvent(payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:         uuid.New().String(),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

// Type returns the payload's "type" field, if it is a string.
func (e *Event) Type() string {
	t, _ := e.Payload["type"].(string)
	return t
}

// Field returns a payload field rendered as a string.
func (e *Event) Field(key string) (string, bool) {
	value, ok := e.Payload[key]
	if !ok {
		return "", false
	}
	if s, ok := value.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", value), true
}

// Processed reports whether a step has consumed the event.
func (e *Event) Processed() bool {
	return e.processed.Load()
}

// MarkProcessed flags the event as consumed. It reports false if it already was.
func (e *Event) MarkProcessed() bool {
	return e.processed.CompareAndSwap(false, true)
}

// String renders the payload as compact JSON with sorted keys and spaced
// separators, for example {"id": "1", "text": "hi"}.
func (e *Event) String() string {
	return renderValue(e.Payload)
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, renderValue(k)+": "+renderValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, renderValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprintf("%q", fmt.Sprintf("%v", v))
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
