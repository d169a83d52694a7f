// Package fanout implements the websocket hub: topic subscriptions,
// wallet-scoped private channels and broadcast with per-connection
// backpressure.
package fanout

// Envelope is the wire frame delivered to subscribers.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix ms, publish time
}

// clientMessage is the frame clients send to manage subscriptions.
type clientMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Topic  string `json:"topic"`
}

// Client actions.
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)
