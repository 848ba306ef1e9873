// Package notify fans job lifecycle events out to live subscribers. It holds
// no history: events published while nobody listens are dropped, and a
// subscriber only sees events published after it subscribed.
package notify

import (
	"sync"

	"github.com/danwin47-sys/ocrflow/observability"
)

// Event types.
const (
	TypeProgress  = "progress"
	TypeCompleted = "completed"
	TypeError     = "error"
)

// Event is one lifecycle update, shaped for direct JSON encoding onto SSE
// and WebSocket streams.
type Event struct {
	Type    string      `json:"type"`
	Percent int         `json:"percent,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Progress builds a progress event.
func Progress(percent int, message string) Event {
	return Event{Type: TypeProgress, Percent: percent, Message: message}
}

// Completed builds a completion event carrying the final result.
func Completed(result interface{}) Event {
	return Event{Type: TypeCompleted, Percent: 100, Result: result}
}

// Failure builds an error event.
func Failure(message string) Event {
	return Event{Type: TypeError, Message: message}
}

// Subscription is one listener on one job. Events arrive in publish order;
// the channel is closed when the subscription ends, whether by Unsubscribe
// or because the listener fell too far behind.
type Subscription struct {
	jobID string
	ch    chan Event
}

// Events returns the receive side of the subscription.
func (s *Subscription) Events() <-chan Event { return s.ch }

// JobID reports which job this subscription follows.
func (s *Subscription) JobID() string { return s.jobID }

// DefaultBuffer is the per-subscriber event buffer. A subscriber that lets
// this many events pile up unread is considered dead and dropped.
const DefaultBuffer = 16

// Notifier is the per-job subscriber registry. Safe for concurrent use.
type Notifier struct {
	mu   sync.Mutex
	subs map[string][]*Subscription

	buffer int
	log    observability.Logger
}

// New creates a Notifier. A nil logger is replaced with a nop.
func New(log observability.Logger) *Notifier {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Notifier{
		subs:   make(map[string][]*Subscription),
		buffer: DefaultBuffer,
		log:    log,
	}
}

// Subscribe registers a listener for jobID events. It never fails; the job
// does not have to exist yet.
func (n *Notifier) Subscribe(jobID string) *Subscription {
	sub := &Subscription{jobID: jobID, ch: make(chan Event, n.buffer)}

	n.mu.Lock()
	n.subs[jobID] = append(n.subs[jobID], sub)
	n.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once and safe for subscriptions already dropped by Publish.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	n.removeLocked(sub)
	n.mu.Unlock()
}

// Publish delivers ev to every current subscriber of jobID, in subscribe
// order. Delivery is non-blocking: a subscriber whose buffer is full is
// dropped and its channel closed, so one stuck reader cannot stall the
// pipeline or other listeners. No subscribers means the event is discarded.
func (n *Notifier) Publish(jobID string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Snapshot: removeLocked rewrites the registered slice in place.
	subs := append([]*Subscription(nil), n.subs[jobID]...)
	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			n.log.Warn("dropping stalled subscriber",
				observability.String("job_id", jobID))
			n.removeLocked(sub)
		}
	}
}

// Subscribers reports how many listeners a job currently has.
func (n *Notifier) Subscribers(jobID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[jobID])
}

// removeLocked unregisters sub and closes its channel exactly once. Callers
// hold n.mu. Presence in the registry is the close guard.
func (n *Notifier) removeLocked(sub *Subscription) {
	subs := n.subs[sub.jobID]
	for i, s := range subs {
		if s != sub {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(n.subs, sub.jobID)
		} else {
			n.subs[sub.jobID] = subs
		}
		close(sub.ch)
		return
	}
}
