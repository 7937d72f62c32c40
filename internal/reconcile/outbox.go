package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SendState is the lifecycle of an optimistic send.
type SendState string

const (
	SendPending   SendState = "pending"
	SendConfirmed SendState = "confirmed"
	SendFailed    SendState = "failed"
)

// OutboxEntry is one in-flight message keyed by its idempotency token.
type OutboxEntry struct {
	TempID         string
	ConversationID uuid.UUID
	Body           string
	State          SendState
	MessageID      uuid.UUID // set on confirmation
	FailureReason  string
	Attempts       int
	EnqueuedAt     time.Time
	SettledAt      time.Time
}

// Outbox tracks optimistic sends until the server echoes them back.
// The tempID is the join key: the message_sent echo carries it, which
// lets the client swap its placeholder for the stored row.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]*OutboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{entries: make(map[string]*OutboxEntry)}
}

// Add registers a pending send. Re-adding an existing tempID counts a
// retry attempt instead of resetting the entry; the token is what
// makes the retry safe.
func (o *Outbox) Add(tempID string, conversationID uuid.UUID, body string) *OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e, ok := o.entries[tempID]; ok {
		e.Attempts++
		if e.State == SendFailed {
			e.State = SendPending
			e.FailureReason = ""
		}
		return e
	}
	e := &OutboxEntry{
		TempID:         tempID,
		ConversationID: conversationID,
		Body:           body,
		State:          SendPending,
		Attempts:       1,
		EnqueuedAt:     time.Now(),
	}
	o.entries[tempID] = e
	return e
}

// Confirm settles a pending entry with the server-assigned id. Unknown
// tokens are ignored; the echo may arrive after a reconnect wiped the
// outbox.
func (o *Outbox) Confirm(tempID string, messageID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[tempID]
	if !ok || e.State == SendConfirmed {
		return false
	}
	e.State = SendConfirmed
	e.MessageID = messageID
	e.SettledAt = time.Now()
	return true
}

// Fail marks a pending entry failed so the client can offer a retry.
func (o *Outbox) Fail(tempID, reason string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[tempID]
	if !ok || e.State == SendConfirmed {
		return false
	}
	e.State = SendFailed
	e.FailureReason = reason
	e.SettledAt = time.Now()
	return true
}

// Get returns a copy of the entry for a token.
func (o *Outbox) Get(tempID string) (OutboxEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[tempID]
	if !ok {
		return OutboxEntry{}, false
	}
	return *e, true
}

// Pending lists entries still awaiting an echo, oldest first.
func (o *Outbox) Pending() []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []OutboxEntry
	for _, e := range o.entries {
		if e.State == SendPending {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

// Compact drops settled entries older than the retention window.
func (o *Outbox) Compact(retention time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for tempID, e := range o.entries {
		if e.State != SendPending && e.SettledAt.Before(cutoff) {
			delete(o.entries, tempID)
			removed++
		}
	}
	return removed
}
