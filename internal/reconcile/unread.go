// Package reconcile implements the optimistic-update bookkeeping a
// connected client keeps between its local view and the server:
// unread counters that zero immediately and commit later, and an
// outbox that tracks in-flight sends by their idempotency token.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDebounce is how long a locally zeroed counter waits before
// the mark-read commit fires. Rapid re-reads within the window
// collapse into one server call.
const DefaultDebounce = 200 * time.Millisecond

// CommitFunc performs the server-side mark-read for a conversation.
type CommitFunc func(ctx context.Context, conversationID uuid.UUID) error

// UnreadLedger mirrors per-conversation unread counts. MarkRead zeroes
// the local count immediately and schedules the commit behind a
// cancel-and-replace debounce; a failed commit rolls the counter back
// to exactly what it would have been had the zero never happened.
type UnreadLedger struct {
	mu       sync.Mutex
	counts   map[uuid.UUID]int
	pending  map[uuid.UUID]*pendingReset
	commit   CommitFunc
	debounce time.Duration
}

type pendingReset struct {
	timer *time.Timer
	// counter value the rollback restores; increments arriving while
	// the commit is pending are folded in
	snapshot int
}

func NewUnreadLedger(commit CommitFunc, debounce time.Duration) *UnreadLedger {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &UnreadLedger{
		counts:   make(map[uuid.UUID]int),
		pending:  make(map[uuid.UUID]*pendingReset),
		commit:   commit,
		debounce: debounce,
	}
}

// Seed installs the server-reported count, discarding any pending
// reset for the conversation.
func (l *UnreadLedger) Seed(conversationID uuid.UUID, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pending[conversationID]; ok {
		p.timer.Stop()
		delete(l.pending, conversationID)
	}
	l.counts[conversationID] = count
}

// Get returns the local count.
func (l *UnreadLedger) Get(conversationID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[conversationID]
}

// Increment records an arriving message. While a reset is pending the
// increment also raises the rollback target, so a failed commit lands
// on the true value.
func (l *UnreadLedger) Increment(conversationID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[conversationID]++
	if p, ok := l.pending[conversationID]; ok {
		p.snapshot++
	}
}

// MarkRead zeroes the counter optimistically and schedules the commit.
// A second MarkRead inside the window cancels and replaces the pending
// timer; the original snapshot is kept so rollback stays exact.
func (l *UnreadLedger) MarkRead(ctx context.Context, conversationID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.counts[conversationID]
	if p, ok := l.pending[conversationID]; ok {
		p.timer.Stop()
		// the earlier zero already captured the value to restore
		snapshot = p.snapshot
	}
	l.counts[conversationID] = 0

	p := &pendingReset{snapshot: snapshot}
	p.timer = time.AfterFunc(l.debounce, func() {
		l.fire(ctx, conversationID)
	})
	l.pending[conversationID] = p
}

// Flush commits every pending reset immediately; used on disconnect.
func (l *UnreadLedger) Flush(ctx context.Context) {
	l.mu.Lock()
	ids := make([]uuid.UUID, 0, len(l.pending))
	for id, p := range l.pending {
		p.timer.Stop()
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		l.fire(ctx, id)
	}
}

// PendingCount reports how many conversations have an uncommitted
// reset.
func (l *UnreadLedger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *UnreadLedger) fire(ctx context.Context, conversationID uuid.UUID) {
	l.mu.Lock()
	p, ok := l.pending[conversationID]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.pending, conversationID)
	snapshot := p.snapshot
	l.mu.Unlock()

	if err := l.commit(ctx, conversationID); err != nil {
		l.mu.Lock()
		// restore exactly: the snapshot already includes increments
		// that arrived while the reset was pending
		l.counts[conversationID] = snapshot
		l.mu.Unlock()
	}
}
