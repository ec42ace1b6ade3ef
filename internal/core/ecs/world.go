package ecs

import (
	"fmt"
	"sync"
	"time"

	"github.com/fishworks/ecs/internal/core/event"
	coresys "github.com/fishworks/ecs/internal/core/system"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options sizes a World and picks how its messages are delivered.
type Options struct {
	InitialCapacity int           // entity slots allocated up front
	GrowthIncrement int           // slots appended when the table is full
	PollInterval    time.Duration // dispatcher poll interval
	BatchSize       int           // messages delivered per poll or per Update
	TickDelivery    bool          // drain one batch at the end of Update instead of on a goroutine
}

func DefaultOptions() Options {
	return Options{
		InitialCapacity: 100,
		GrowthIncrement: 100,
		PollInterval:    50 * time.Millisecond,
		BatchSize:       10,
	}
}

// World is the top-level ECS container. It owns the entity table, fires
// lifecycle events to observers, drives systems each tick, and owns the
// message bus.
//
// Everything except Defer, SendMessage and the message subscription calls
// must be used from a single simulation goroutine.
type World struct {
	registry  *Registry
	table     *table
	observers observers
	runner    *coresys.Runner

	bus          *event.Bus
	dispatcher   *event.Dispatcher
	tickDelivery bool
	batchSize    int

	deferMu  sync.Mutex
	deferred []func(*World)

	destroyQueue []queuedDestroy

	log *zap.Logger
}

// queuedDestroy remembers which Status instance occupied the slot when it
// was marked, so a slot reused before the flush is left alone.
type queuedDestroy struct {
	id     EntityID
	status *Status
}

// NewWorld creates a world backed by the process-wide DefaultRegistry.
// Unless opts.TickDelivery is set the message dispatcher starts
// immediately; call Close to stop it.
func NewWorld(opts Options, log *zap.Logger) *World {
	return NewWorldWithRegistry(opts, defaultRegistry, log)
}

// NewWorldWithRegistry creates a world whose kinds are assigned by reg.
// Non-positive sizes and intervals fall back to DefaultOptions.
func NewWorldWithRegistry(opts Options, reg *Registry, log *zap.Logger) *World {
	def := DefaultOptions()
	if opts.InitialCapacity < 0 {
		opts.InitialCapacity = def.InitialCapacity
	}
	if opts.GrowthIncrement <= 0 {
		opts.GrowthIncrement = def.GrowthIncrement
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}

	bus := event.NewBus(log)
	w := &World{
		registry:     reg,
		table:        newTable(opts.InitialCapacity, opts.GrowthIncrement),
		runner:       coresys.NewRunner(),
		bus:          bus,
		tickDelivery: opts.TickDelivery,
		batchSize:    opts.BatchSize,
		destroyQueue: make([]queuedDestroy, 0, 64),
		log:          log,
	}
	if !w.tickDelivery {
		w.dispatcher = event.NewDispatcher(bus, opts.PollInterval, opts.BatchSize, log)
		w.dispatcher.Start()
	}
	return w
}

// Close stops the background message dispatcher and waits for it to exit.
// Undelivered messages are dropped.
func (w *World) Close() {
	if w.dispatcher != nil {
		w.dispatcher.Stop()
	}
}

func (w *World) Registry() *Registry { return w.registry }
func (w *World) Bus() *event.Bus     { return w.bus }

// Capacity returns the number of entity slots in the table.
func (w *World) Capacity() int { return w.table.columns() }

// EntityCount returns the number of slots holding at least one component.
func (w *World) EntityCount() int {
	n := 0
	for id := 0; id < w.table.columns(); id++ {
		if w.table.bitmask(EntityID(id)) != 0 {
			n++
		}
	}
	return n
}

// CreateEntity returns the lowest free slot, growing the table when none is
// left. The entity carries a live Status component but stays invisible to
// systems until AddToWorld.
func (w *World) CreateEntity() *Entity {
	id, found := EntityID(0), false
	for i := 0; i < w.table.columns(); i++ {
		if !w.table.published[i] && w.table.bitmask(EntityID(i)) == 0 {
			id, found = EntityID(i), true
			break
		}
	}
	if !found {
		id = w.table.grow()
		w.log.Debug("entity table grown",
			zap.Int("capacity", w.table.columns()),
			zap.Uint32("first_new", uint32(id)),
		)
	}
	statusMask, _ := w.registry.Lookup(StatusKind)
	w.table.set(rowOf(statusMask), id, &Status{Alive: true})
	return &Entity{ID: id, world: w}
}

// AddToWorld publishes an entity and fires EntityAdded with its bitmask.
// Only slots holding at least one component can be published.
func (w *World) AddToWorld(id EntityID) error {
	if !w.table.inRange(id) {
		return eris.Wrapf(ErrInvalidEntity, "publish entity %d", id)
	}
	mask := w.table.bitmask(id)
	if mask == 0 {
		return eris.Wrapf(ErrInvalidEntity, "publish entity %d: slot holds no components", id)
	}
	w.table.published[id] = true
	w.observers.emit(EntityEvent{Kind: EntityAdded, ID: id, Mask: mask})
	return nil
}

// Published reports whether id has been added to the world and not destroyed.
func (w *World) Published(id EntityID) bool {
	return w.table.inRange(id) && w.table.published[id]
}

// AddComponent stores c in the entity's cell for c's kind, replacing any
// previous component of that kind. Published entities fire EntityChanged.
func (w *World) AddComponent(id EntityID, c Component) error {
	kind, err := kindOf(c)
	if err != nil {
		return eris.Wrapf(err, "add component to entity %d", id)
	}
	if !w.table.inRange(id) {
		return eris.Wrapf(ErrInvalidEntity, "add %q to entity %d", kind, id)
	}
	mask, err := w.registry.MaskOf(kind)
	if err != nil {
		return eris.Wrapf(err, "add %q to entity %d", kind, id)
	}
	w.table.set(rowOf(mask), id, c)
	w.changed(id)
	return nil
}

// RemoveComponent clears the entity's cell for kind. Published entities
// fire EntityChanged. Removing a kind that was never registered is a no-op.
func (w *World) RemoveComponent(id EntityID, kind Kind) error {
	if kind == "" {
		return eris.Wrapf(ErrInvalidKind, "remove component from entity %d", id)
	}
	if !w.table.inRange(id) {
		return eris.Wrapf(ErrInvalidEntity, "remove %q from entity %d", kind, id)
	}
	mask, ok := w.registry.Lookup(kind)
	if !ok {
		return nil
	}
	w.table.clear(rowOf(mask), id)
	w.changed(id)
	return nil
}

func (w *World) changed(id EntityID) {
	if w.table.published[id] {
		w.observers.emit(EntityEvent{Kind: EntityChanged, ID: id, Mask: w.table.bitmask(id)})
	}
}

// DestroyEntity clears every cell of the entity and unpublishes it. If it
// was published, EntityRemoved fires with the bitmask it had before.
func (w *World) DestroyEntity(id EntityID) error {
	if !w.table.inRange(id) {
		return eris.Wrapf(ErrInvalidEntity, "destroy entity %d", id)
	}
	mask := w.table.bitmask(id)
	wasPublished := w.table.published[id]
	w.table.clearColumn(id)
	w.table.published[id] = false
	if wasPublished {
		w.observers.emit(EntityEvent{Kind: EntityRemoved, ID: id, Mask: mask})
	}
	return nil
}

// Kill clears the entity's Status.Alive flag. It reports false if the entity
// has no Status component.
func (w *World) Kill(id EntityID) bool {
	st, ok := Get[*Status](w, id)
	if !ok {
		return false
	}
	st.Alive = false
	return true
}

// MarkForDestruction queues an entity for FlushDestroyQueue. If the entity
// is destroyed and its slot handed out again before the flush, the new
// occupant is not touched.
func (w *World) MarkForDestruction(id EntityID) {
	st, _ := Get[*Status](w, id)
	w.destroyQueue = append(w.destroyQueue, queuedDestroy{id: id, status: st})
}

// FlushDestroyQueue destroys every queued entity, including entities queued
// by observers while the flush runs. Ids that have gone out of range or
// whose slot now holds another entity are skipped.
func (w *World) FlushDestroyQueue() {
	for len(w.destroyQueue) > 0 {
		queue := w.destroyQueue
		w.destroyQueue = nil
		for _, q := range queue {
			if st, _ := Get[*Status](w, q.id); st != q.status {
				w.log.Debug("queued destroy skipped, slot reused", zap.Uint32("entity", uint32(q.id)))
				continue
			}
			if err := w.DestroyEntity(q.id); err != nil {
				w.log.Warn("queued destroy skipped", zap.Uint32("entity", uint32(q.id)), zap.Error(err))
			}
		}
	}
}

// EntityBitmask returns the OR of the kind masks of every component the
// entity holds, or InvalidMask for an id outside the table.
func (w *World) EntityBitmask(id EntityID) Mask {
	if !w.table.inRange(id) {
		return InvalidMask
	}
	return w.table.bitmask(id)
}

// GetComponent returns the entity's component of the given kind.
func (w *World) GetComponent(id EntityID, kind Kind) (Component, bool) {
	if !w.table.inRange(id) {
		return nil, false
	}
	mask, ok := w.registry.Lookup(kind)
	if !ok {
		return nil, false
	}
	c := w.table.get(rowOf(mask), id)
	return c, c != nil
}

// Get returns the entity's component of type T.
func Get[T Component](w *World, id EntityID) (T, bool) {
	var zero T
	c, ok := w.GetComponent(id, KindFor[T]())
	if !ok {
		return zero, false
	}
	typed, ok := c.(T)
	return typed, ok
}

// GetComponents returns every component the entity holds, in kind order.
func (w *World) GetComponents(id EntityID) []Component {
	if !w.table.inRange(id) {
		return nil
	}
	return w.table.column(id)
}

func (w *World) Has(id EntityID, kind Kind) bool {
	_, ok := w.GetComponent(id, kind)
	return ok
}

// Mask ORs the masks of kinds, assigning any that are new.
func (w *World) Mask(kinds ...Kind) (Mask, error) {
	return w.registry.Combine(kinds...)
}

// MaskOfValue returns the mask of v's kind. Values that do not implement
// Component are rejected rather than registered.
func (w *World) MaskOfValue(v any) (Mask, error) {
	kind, err := kindOf(v)
	if err != nil {
		return 0, eris.Wrapf(err, "mask of %T", v)
	}
	return w.registry.MaskOf(kind)
}

// Observe subscribes obs to lifecycle events. The returned func cancels the
// subscription.
func (w *World) Observe(obs Observer) func() {
	id := w.observers.add(obs)
	return func() { w.observers.remove(id) }
}

// AddSystem registers a system that is driven every Update.
func (w *World) AddSystem(s coresys.System) {
	w.runner.Register(s, true)
	w.log.Debug("system added", zap.String("system", systemName(s)))
}

// AddInactiveSystem registers a system that keeps its cache current but is
// not driven until SetSystemActive turns it on.
func (w *World) AddInactiveSystem(s coresys.System) {
	w.runner.Register(s, false)
	w.log.Debug("inactive system added", zap.String("system", systemName(s)))
}

func (w *World) SetSystemActive(s coresys.System, active bool) bool {
	return w.runner.SetActive(s, active)
}

// Update runs one tick: deferred actions queued since the last tick, then
// every active system's Update and ProcessEntities in phase order, then (with
// tick delivery) one batch of messages.
func (w *World) Update(dt time.Duration) {
	w.runDeferred()
	w.runner.Tick(dt)
	if w.tickDelivery {
		w.bus.DispatchBatch(w.batchSize)
	}
}

// Defer queues fn to run on the simulation goroutine at the start of the
// next Update. Safe to call from any goroutine.
func (w *World) Defer(fn func(*World)) {
	w.deferMu.Lock()
	w.deferred = append(w.deferred, fn)
	w.deferMu.Unlock()
}

func (w *World) runDeferred() {
	w.deferMu.Lock()
	actions := w.deferred
	w.deferred = nil
	w.deferMu.Unlock()

	for _, fn := range actions {
		fn(w)
	}
}

// SendMessage queues m on the bus. Safe to call from any goroutine.
func (w *World) SendMessage(m event.Message) {
	w.bus.Send(m)
}

// SubscribeMessages registers fn on the bus. With background delivery fn runs
// on the dispatcher goroutine and must not touch entities or components; use
// OnMessage for handlers that do.
func (w *World) SubscribeMessages(fn event.Handler) {
	w.bus.Subscribe(fn)
}

// OnMessage registers fn to run on the simulation goroutine for every
// delivered message, at the start of the Update following delivery.
func (w *World) OnMessage(fn func(w *World, m event.Message)) {
	w.bus.Subscribe(func(m event.Message) {
		w.Defer(func(w *World) { fn(w, m) })
	})
}

type namer interface{ Name() string }

func systemName(s coresys.System) string {
	if n, ok := s.(namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
