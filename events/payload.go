// Package events delivers native-originated events to host-registered
// callbacks. A single dispatcher drains an unbounded FIFO queue, so per-
// resource emission order is preserved end to end; events for different
// resources carry no relative ordering guarantee beyond queue position.
package events

import (
	"github.com/goliatone/go-hostbridge/handle"
)

type Type string

const (
	TypeTransactionStatus   Type = "transaction_status"
	TypeBalanceChanged      Type = "balance_changed"
	TypeConnectivityChanged Type = "connectivity_changed"
)

// Payload is immutable once constructed. Timestamp is epoch milliseconds
// assigned at emission, not at delivery.
type Payload struct {
	Type      Type
	Handle    handle.ID
	Data      map[string]any
	Timestamp int64
}

// Callback receives events for one resource handle. A returned error is
// logged and swallowed at the dispatch boundary; it never reaches the
// emitting thread.
type Callback func(event Payload) error

type Stats struct {
	Registered int
	Pending    int
	Delivered  uint64
	Dropped    uint64
}
