package connection

import (
	"sync"

	"github.com/rickgao/broker-stream/internal/api"
)

// Subscription is one "channel + id set" request.
type Subscription struct {
	Channel api.Channel
	IDs     []string
}

// Ledger is the append-only record of every subscription ever requested.
// It is never pruned: duplicates are re-sent and the remote end is the
// source of truth for idempotence. The whole ledger is replayed on each
// authenticated transition, since the remote side forgets subscriptions
// across reconnects.
type Ledger struct {
	mu      sync.Mutex
	entries []Subscription
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a subscription request.
func (l *Ledger) Append(sub Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, sub)
}

// Entries returns a snapshot of all recorded requests in append order.
func (l *Ledger) Entries() []Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Subscription, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded requests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
