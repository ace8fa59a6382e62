// Package dialog provides an async confirm/acknowledge broker. A request
// returns a pending handle with a per-invocation token; the matching UI
// acknowledgment resolves it exactly once. Multiple dialogs can be pending at
// the same time because there is no shared "current resolver": each
// invocation owns its token and channel.
package dialog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownToken is returned when resolving a token that is not pending.
	ErrUnknownToken = errors.New("unknown or already resolved dialog token")
)

// Pending is one outstanding confirmation request.
type Pending struct {
	Token  string
	Prompt string
	// Answer receives the acknowledgment exactly once.
	Answer <-chan bool

	created time.Time
}

type pendingEntry struct {
	prompt  string
	answer  chan bool
	created time.Time
	once    sync.Once
}

// Broker tracks pending confirmation requests by token.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	ttl     time.Duration
}

// NewBroker creates a broker whose pending requests expire after ttl.
func NewBroker(ttl time.Duration) *Broker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Broker{pending: make(map[string]*pendingEntry), ttl: ttl}
}

// Request registers a confirmation and returns its pending handle.
func (b *Broker) Request(prompt string) Pending {
	entry := &pendingEntry{
		prompt:  prompt,
		answer:  make(chan bool, 1),
		created: time.Now(),
	}
	token := newToken()

	b.mu.Lock()
	b.pending[token] = entry
	b.mu.Unlock()

	return Pending{Token: token, Prompt: prompt, Answer: entry.answer, created: entry.created}
}

// Resolve delivers the acknowledgment for a token. A token resolves at most
// once; later calls return ErrUnknownToken.
func (b *Broker) Resolve(token string, confirmed bool) error {
	b.mu.Lock()
	entry, ok := b.pending[token]
	if ok {
		delete(b.pending, token)
	}
	b.mu.Unlock()
	if !ok {
		return ErrUnknownToken
	}
	entry.once.Do(func() {
		entry.answer <- confirmed
		close(entry.answer)
	})
	return nil
}

// Await blocks until the pending request is resolved or the context ends.
func Await(ctx context.Context, p Pending) (bool, error) {
	select {
	case confirmed, ok := <-p.Answer:
		if !ok {
			return false, ErrUnknownToken
		}
		return confirmed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Prompt returns the prompt of a pending token, for re-display.
func (b *Broker) Prompt(token string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.pending[token]
	if !ok {
		return "", false
	}
	return entry.prompt, true
}

// Sweep drops pending requests older than the broker's TTL and returns how
// many were removed. Swept requests resolve as declined.
func (b *Broker) Sweep() int {
	cutoff := time.Now().Add(-b.ttl)

	b.mu.Lock()
	var stale []*pendingEntry
	for token, entry := range b.pending {
		if entry.created.Before(cutoff) {
			stale = append(stale, entry)
			delete(b.pending, token)
		}
	}
	b.mu.Unlock()

	for _, entry := range stale {
		entry.once.Do(func() {
			entry.answer <- false
			close(entry.answer)
		})
	}
	return len(stale)
}

// PendingCount returns the number of unresolved requests.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func newToken() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dlg_%d", time.Now().UnixNano())
	}
	return "dlg_" + hex.EncodeToString(bytes)
}
