package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrBadPayload marks a delivery whose envelope parsed but whose data block
// does not match the expected shape for its type. Permanently fails the
// delivery (400); retrying the same bytes cannot succeed.
var ErrBadPayload = errors.New("webhook: malformed event payload")

// Event is the decoded webhook envelope. Data stays raw until the dispatcher
// knows the type.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode parses the raw body into an envelope. The caller must pass the
// complete buffered body; signature verification already ran over the same
// bytes.
func Decode(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode event envelope: missing event type")
	}
	return &ev, nil
}

// decodeData parses the envelope's data block into the type the event family
// uses. Failures wrap ErrBadPayload.
func decodeData[T any](ev *Event) (T, error) {
	var out T
	if err := json.Unmarshal(ev.Data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrBadPayload, ev.Type, err)
	}
	return out, nil
}
