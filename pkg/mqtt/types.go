package mqtt

import (
	"context"
)

// MessageHandler is the callback invoked for received MQTT messages.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// ConnState describes a broker connection transition reported to the
// StatusListener.
type ConnState int

const (
	// ConnStateUp is reported after a successful (re)connection.
	ConnStateUp ConnState = iota
	// ConnStateConnectError is reported after a failed connection attempt.
	ConnStateConnectError
	// ConnStateServerDisconnect is reported when the broker drops the session.
	ConnStateServerDisconnect
)

// StatusListener receives connection lifecycle notifications. err is non-nil
// only for ConnStateConnectError. The listener runs on paho's callback
// goroutine and must not block.
type StatusListener func(state ConnState, err error)

// Client is the broker-facing interface used by the ingestion gateway and the
// publishers. It hides the underlying paho implementation.
type Client interface {
	// Start initiates the connection to the broker. It is non-blocking and
	// returns immediately; use AwaitConnection to wait for the first CONNACK.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers a handler for a topic filter (wildcards allowed).
	// If the connection is lost and restored the subscription is re-sent
	// automatically.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected to the broker.
	AwaitConnection(ctx context.Context) error
}
