package engine

import (
	"sync"

	"github.com/seantiz/qexec/internal/model"
)

// subscriberBufferSize is the channel buffer for each status subscriber.
// A job publishes at most three events, so a full buffer means a stuck reader.
const subscriberBufferSize = 8

// StatusBroker manages per-job status event streaming to subscribers.
// It is safe for concurrent use.
//
// A closed topic is kept as a marker, so that late subscribers receive a
// closed channel instead of blocking forever, until Forget drops it.
type StatusBroker struct {
	mu     sync.Mutex
	topics map[string]*statusTopic
}

type statusTopic struct {
	subs   map[int]chan model.StatusEvent
	nextID int
	closed bool
}

// NewStatusBroker creates a new status broker.
func NewStatusBroker() *StatusBroker {
	return &StatusBroker{
		topics: make(map[string]*statusTopic),
	}
}

// Subscribe returns a channel that receives status events for the given job
// and an unsubscribe function. If the job has already finished (Close was
// called), the returned channel is immediately closed.
func (b *StatusBroker) Subscribe(jobID string) (<-chan model.StatusEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &statusTopic{subs: make(map[int]chan model.StatusEvent)}
		b.topics[jobID] = t
	}

	ch := make(chan model.StatusEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
		if len(t.subs) == 0 && !t.closed && b.topics[jobID] == t {
			delete(b.topics, jobID)
		}
	}
}

// Publish sends an event to all subscribers of ev.JobID.
// Events are dropped for subscribers whose buffers are full.
func (b *StatusBroker) Publish(ev model.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.JobID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close signals that no more events will be published for the given job.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *StatusBroker) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		b.topics[jobID] = &statusTopic{subs: make(map[int]chan model.StatusEvent), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Forget drops the topic for jobID once nothing will subscribe through the
// live job any more. A later Subscribe opens a fresh topic, so callers must
// check the job's status after subscribing.
func (b *StatusBroker) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[jobID]; ok && t.closed {
		delete(b.topics, jobID)
	}
}

// Topics returns the number of topics currently held.
func (b *StatusBroker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
