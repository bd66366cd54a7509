package dispatcher

import (
	"sort"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/pubsub"
	"github.com/renholm/switchboard/internal/schema"
)

// Kind classifies what a registration added to the dispatch table.
type Kind string

const (
	KindNamespace Kind = "namespace"
	KindDef       Kind = "def"
	KindImpl      Kind = "impl"
	KindFallback  Kind = "fallback"
)

// Registration describes one committed table mutation. The same record is
// delivered to listeners when the registration lands and again when its
// handle is released.
type Registration struct {
	ID        RegistrationID
	Kind      Kind
	Namespace string              // set for KindNamespace
	Operator  schema.OperatorName // set for KindDef and KindImpl
	Key       dispatch.Key        // set for KindImpl and KindFallback
	Debug     string
}

// Listener observes table mutations. Callbacks run outside the dispatcher
// lock, after the mutation is visible, and must not block for long.
type Listener interface {
	RegistrationAdded(Registration)
	RegistrationRemoved(Registration)
}

// AddListener subscribes l to future mutations. There is no replay of the
// existing table. The returned function removes the subscription.
func (d *Dispatcher) AddListener(l Listener) func() {
	d.mu.Lock()
	id := d.nextListener
	d.nextListener++
	d.listeners[id] = l
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// snapshotListeners copies the listener set in subscription order so
// notifications run without holding the dispatcher lock.
func (d *Dispatcher) snapshotListeners() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.listeners[id])
	}
	return out
}

func (d *Dispatcher) notifyAdded(rec Registration) {
	for _, l := range d.snapshotListeners() {
		l.RegistrationAdded(rec)
	}
}

func (d *Dispatcher) notifyRemoved(rec Registration) {
	for _, l := range d.snapshotListeners() {
		l.RegistrationRemoved(rec)
	}
}

// brokerListener forwards mutations to a pubsub publisher so interested
// parties can consume them as a channel feed.
type brokerListener struct {
	pub pubsub.Publisher[Registration]
}

// NewBrokerListener adapts a publisher into a Listener. Added
// registrations publish pubsub.AddedEvent, released ones
// pubsub.RemovedEvent.
func NewBrokerListener(p pubsub.Publisher[Registration]) Listener {
	return &brokerListener{pub: p}
}

func (bl *brokerListener) RegistrationAdded(rec Registration) {
	bl.pub.Publish(pubsub.AddedEvent, rec)
}

func (bl *brokerListener) RegistrationRemoved(rec Registration) {
	bl.pub.Publish(pubsub.RemovedEvent, rec)
}
