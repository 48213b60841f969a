// Package notify pushes escalated alerts to external channels, outside the
// subscriber fanout. Channels are best-effort: a failed push is logged and
// never blocks the escalation path.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one escalated alert bound for an external channel.
type Message struct {
	Kind       string          `json:"kind"`
	SourceID   string          `json:"sourceId"`
	Priority   string          `json:"priority,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Notifier delivers a message to one external channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// MultiNotifier fans a message out to several channels, ignoring nils.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards msg to every channel and returns the first error.
func (m *MultiNotifier) Notify(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var first error
	for _, n := range m.notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
