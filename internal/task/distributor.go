package task

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/devfedhq/devboard/pkg/models"
)

// subscriptionBuffer is the per-subscriber channel capacity. Runners emit a
// handful of events per task, so a slow reader would need to stall for the
// whole run before anything is dropped.
const subscriptionBuffer = 64

// Subscription is one live reader of a task's event stream. The channel is
// closed by the distributor when the task finishes while the subscription is
// attached. A reader that attaches after the runner already finished gets an
// open channel that will never deliver; callers detect that case from the
// task's stored status, which is durable, rather than from the registry.
type Subscription struct {
	C      <-chan models.TaskEvent
	ch     chan models.TaskEvent
	taskID uuid.UUID
}

// TaskID returns the task this subscription observes.
func (s *Subscription) TaskID() uuid.UUID { return s.taskID }

// Distributor fans live task events out to subscribers. Events published
// before a subscriber attaches are not redelivered here — historical events
// come from the store's log replay. Each subscriber has its own channel;
// delivery to one never consumes an event from another. The registry only
// holds tasks with at least one attached subscriber: Finish and the last
// Unsubscribe both drop the task's entry, so it never grows with the number
// of tasks ever run.
type Distributor struct {
	mu     sync.Mutex
	topics map[uuid.UUID]map[*Subscription]struct{}
}

// NewDistributor creates an empty Distributor.
func NewDistributor() *Distributor {
	return &Distributor{topics: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe attaches a new reader to the task's live stream.
func (d *Distributor) Subscribe(taskID uuid.UUID) *Subscription {
	ch := make(chan models.TaskEvent, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, taskID: taskID}

	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.topics[taskID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		d.topics[taskID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a reader. Other subscribers and the runner are
// unaffected. The task's entry is dropped once no subscribers remain.
func (d *Distributor) Unsubscribe(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.topics[sub.taskID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(d.topics, sub.taskID)
	}
}

// Publish delivers an event to every current subscriber of the task. Sends
// never block the runner: a subscriber whose buffer is full misses the event
// and a warning is logged.
func (d *Distributor) Publish(taskID uuid.UUID, ev models.TaskEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sub := range d.topics[taskID] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("dropping event for slow stream subscriber", "task_id", taskID, "event_id", ev.ID)
		}
	}
}

// Finish closes every attached subscriber channel and removes the task from
// the registry. Safe to call more than once. Subscribers that attach later
// are not signalled here; by then the task's terminal status is already
// durable and readable from the store.
func (d *Distributor) Finish(taskID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sub := range d.topics[taskID] {
		close(sub.ch)
	}
	delete(d.topics, taskID)
}
