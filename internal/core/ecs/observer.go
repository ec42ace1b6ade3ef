package ecs

// EventKind identifies a lifecycle event.
type EventKind uint8

const (
	EntityAdded   EventKind = iota // entity published
	EntityChanged                  // component attached or detached on a published entity
	EntityRemoved                  // entity destroyed; Mask is the bitmask before clearing
)

func (k EventKind) String() string {
	switch k {
	case EntityAdded:
		return "added"
	case EntityChanged:
		return "changed"
	case EntityRemoved:
		return "removed"
	}
	return "unknown"
}

// EntityEvent is delivered synchronously to every Observer.
type EntityEvent struct {
	Kind EventKind
	ID   EntityID
	Mask Mask
}

// Observer receives lifecycle events on the simulation goroutine.
type Observer interface {
	OnEntityEvent(ev EntityEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev EntityEvent)

func (f ObserverFunc) OnEntityEvent(ev EntityEvent) { f(ev) }

// observers fans events out in subscription order. An event raised while a
// fan-out is running is queued and delivered once the current one has
// reached every observer, so all observers see the same event order.
type observers struct {
	list     []subscription
	nextID   uint64
	pending  []EntityEvent
	emitting bool
}

type subscription struct {
	id  uint64
	obs Observer
}

func (o *observers) add(obs Observer) uint64 {
	o.nextID++
	o.list = append(o.list, subscription{id: o.nextID, obs: obs})
	return o.nextID
}

func (o *observers) remove(id uint64) {
	for i, sub := range o.list {
		if sub.id == id {
			// Copy so a fan-out ranging over the old slice is unaffected.
			next := make([]subscription, 0, len(o.list)-1)
			next = append(next, o.list[:i]...)
			o.list = append(next, o.list[i+1:]...)
			return
		}
	}
}

func (o *observers) emit(ev EntityEvent) {
	o.pending = append(o.pending, ev)
	if o.emitting {
		return
	}
	o.emitting = true
	defer func() { o.emitting = false }()

	for len(o.pending) > 0 {
		next := o.pending[0]
		o.pending = o.pending[1:]
		for _, sub := range o.list {
			sub.obs.OnEntityEvent(next)
		}
	}
	o.pending = o.pending[:0]
}
