package ecs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fishworks/ecs/internal/core/event"
	"go.uber.org/zap/zaptest"
)

func TestWorldShouldIncrementSize(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 1000; i++ {
		if err := w.CreateEntity().AddToWorld().Err(); err != nil {
			t.Fatal(err)
		}
	}
	if w.EntityCount() != 1000 {
		t.Fatalf("expected 1000 entities, got %d", w.EntityCount())
	}
	if w.Capacity() != 1000 {
		t.Fatalf("expected capacity 1000, got %d", w.Capacity())
	}
}

func TestWorldReusesLowestFreeSlot(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 1000; i++ {
		w.CreateEntity().AddToWorld()
	}

	if err := w.DestroyEntity(128); err != nil {
		t.Fatal(err)
	}
	if err := w.DestroyEntity(455); err != nil {
		t.Fatal(err)
	}

	e1 := w.CreateEntity().AddComponent(&position{}).AddToWorld()
	e2 := w.CreateEntity().AddComponent(&velocity{}).AddToWorld()
	if e1.Err() != nil || e2.Err() != nil {
		t.Fatalf("create: %v %v", e1.Err(), e2.Err())
	}
	if e1.ID != 128 || e2.ID != 455 {
		t.Fatalf("expected ids 128 then 455, got %d then %d", e1.ID, e2.ID)
	}
	if w.Capacity() != 1000 {
		t.Fatalf("reuse must not grow the table, capacity=%d", w.Capacity())
	}
}

func TestGrowthPreservesExistingCells(t *testing.T) {
	w := newTestWorld(t)
	if w.Capacity() != 100 {
		t.Fatalf("expected starting capacity 100, got %d", w.Capacity())
	}

	stored := make([]*position, 100)
	for i := range stored {
		stored[i] = &position{X: float64(i), Y: float64(-i)}
		id := spawn(t, w, stored[i])
		if id != EntityID(i) {
			t.Fatalf("expected id %d, got %d", i, id)
		}
	}

	e := w.CreateEntity()
	if e.ID != 100 {
		t.Fatalf("expected first slot of the new region, got %d", e.ID)
	}
	if w.Capacity() != 200 {
		t.Fatalf("expected capacity 200 after growth, got %d", w.Capacity())
	}
	if !w.Has(e.ID, StatusKind) {
		t.Fatal("entity from a grown table must carry the status component")
	}

	for i, want := range stored {
		got, ok := Get[*position](w, EntityID(i))
		if !ok || got != want || got.X != float64(i) || got.Y != float64(-i) {
			t.Fatalf("entity %d lost its position after growth: %+v", i, got)
		}
		if !w.Published(EntityID(i)) {
			t.Fatalf("entity %d lost its published flag after growth", i)
		}
	}
}

func TestCreateEntityCarriesStatus(t *testing.T) {
	w := newTestWorld(t)
	e := w.CreateEntity()
	st, ok := Get[*Status](w, e.ID)
	if !ok || !st.Alive {
		t.Fatalf("expected live status, got %+v (present %v)", st, ok)
	}
	if w.Published(e.ID) {
		t.Fatal("new entity must not be published")
	}
	if e.Bitmask() != mustMask(t, w, StatusKind) {
		t.Fatalf("bitmask = %b, want status only", e.Bitmask())
	}
}

func TestUnpublishedMutationsFireNoEvents(t *testing.T) {
	w := newTestWorld(t)
	rec := &recorder{}
	w.Observe(rec)

	e := w.CreateEntity().AddComponent(&position{}).AddComponent(&velocity{})
	e.RemoveComponent("test.velocity")
	if len(rec.events) != 0 {
		t.Fatalf("expected no events before publishing, got %v", rec.events)
	}

	e.AddToWorld()
	want := EntityEvent{Kind: EntityAdded, ID: e.ID, Mask: mustMask(t, w, StatusKind, "test.position")}
	if len(rec.events) != 1 || rec.events[0] != want {
		t.Fatalf("events = %v, want [%v]", rec.events, want)
	}
}

func TestPublishedMutationsFireChanged(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w, &position{})
	rec := &recorder{}
	w.Observe(rec)

	if err := w.AddComponent(id, &velocity{}); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveComponent(id, "test.position"); err != nil {
		t.Fatal(err)
	}

	want := []EntityEvent{
		{Kind: EntityChanged, ID: id, Mask: mustMask(t, w, StatusKind, "test.position", "test.velocity")},
		{Kind: EntityChanged, ID: id, Mask: mustMask(t, w, StatusKind, "test.velocity")},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, rec.events[i], want[i])
		}
	}
}

func TestDestroyReportsPreClearBitmask(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w, &position{}, &velocity{})
	before := w.EntityBitmask(id)
	rec := &recorder{}
	w.Observe(rec)

	if err := w.DestroyEntity(id); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 1 || rec.events[0] != (EntityEvent{Kind: EntityRemoved, ID: id, Mask: before}) {
		t.Fatalf("events = %v, want removed with mask %b", rec.events, before)
	}
	if w.EntityBitmask(id) != 0 || w.Published(id) || len(w.GetComponents(id)) != 0 {
		t.Fatal("destroyed entity must have an empty, unpublished column")
	}
}

func TestDestroyUnpublishedFiresNothing(t *testing.T) {
	w := newTestWorld(t)
	e := w.CreateEntity().AddComponent(&position{})
	rec := &recorder{}
	w.Observe(rec)

	if err := e.Destroy(); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %v", rec.events)
	}
	if w.EntityBitmask(e.ID) != 0 {
		t.Fatal("slot should be cleared")
	}
}

func TestComponentLessPublishedSlotIsNotReused(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w)
	if err := w.RemoveComponent(id, StatusKind); err != nil {
		t.Fatal(err)
	}
	if w.EntityBitmask(id) != 0 {
		t.Fatal("expected empty bitmask")
	}
	if next := w.CreateEntity(); next.ID == id {
		t.Fatal("a published slot must be destroyed before it is reused")
	}
}

func TestEntityBitmaskOutOfRange(t *testing.T) {
	w := newTestWorld(t)
	if m := w.EntityBitmask(EntityID(w.Capacity())); m != InvalidMask || m.Valid() {
		t.Fatalf("expected InvalidMask, got %b", m)
	}
	if got := w.GetComponents(EntityID(w.Capacity() + 5)); got != nil {
		t.Fatalf("expected nil components, got %v", got)
	}
	if w.Published(EntityID(w.Capacity())) {
		t.Fatal("out-of-range id cannot be published")
	}
}

func TestMutationErrors(t *testing.T) {
	w := newTestWorld(t)
	outOfRange := EntityID(w.Capacity())

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"add_out_of_range", func() error { return w.AddComponent(outOfRange, &position{}) }, ErrInvalidEntity},
		{"remove_out_of_range", func() error { return w.RemoveComponent(outOfRange, "test.position") }, ErrInvalidEntity},
		{"destroy_out_of_range", func() error { return w.DestroyEntity(outOfRange) }, ErrInvalidEntity},
		{"publish_out_of_range", func() error { return w.AddToWorld(outOfRange) }, ErrInvalidEntity},
		{"add_nil_interface", func() error { return w.AddComponent(0, nil) }, ErrNilComponent},
		{"add_typed_nil", func() error { return w.AddComponent(0, (*position)(nil)) }, ErrNilComponent},
		{"remove_empty_kind", func() error { return w.RemoveComponent(0, "") }, ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMaskOfValueRejectsNonComponents(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.MaskOfValue(struct{ X int }{}); !errors.Is(err, ErrNotComponent) {
		t.Fatalf("expected ErrNotComponent, got %v", err)
	}
	m, err := w.MaskOfValue(&position{})
	if err != nil || m != mustMask(t, w, "test.position") {
		t.Fatalf("mask = %b, err = %v", m, err)
	}
}

func TestEntityChainStopsAtFirstError(t *testing.T) {
	w := newTestWorld(t)
	rec := &recorder{}
	w.Observe(rec)

	e := w.CreateEntity().AddComponent(nil).AddComponent(&position{}).AddToWorld()
	if !errors.Is(e.Err(), ErrNilComponent) {
		t.Fatalf("expected ErrNilComponent, got %v", e.Err())
	}
	if w.Published(e.ID) || w.Has(e.ID, "test.position") || len(rec.events) != 0 {
		t.Fatal("calls after the failing one must not run")
	}
	if !errors.Is(e.Destroy(), ErrNilComponent) {
		t.Fatal("Destroy should surface the stored error")
	}
}

func TestGetComponentsInKindOrder(t *testing.T) {
	w := newTestWorld(t)
	// Make sure both kinds exist before deciding the expected order.
	mustMask(t, w, "test.position", "test.velocity")

	p, v := &position{X: 1}, &velocity{X: 2}
	id := spawn(t, w, v, p)
	got := w.GetComponents(id)
	if len(got) != 3 {
		t.Fatalf("expected status, position, velocity; got %v", got)
	}
	if _, ok := got[0].(*Status); !ok {
		t.Fatalf("status must come first, got %T", got[0])
	}
	mp, _ := w.Registry().Lookup("test.position")
	mv, _ := w.Registry().Lookup("test.velocity")
	first, second := Component(p), Component(v)
	if mv < mp {
		first, second = v, p
	}
	if got[1] != first || got[2] != second {
		t.Fatalf("components out of kind order: %v", got)
	}
}

func TestEntitiesMatchingExclusion(t *testing.T) {
	w := newTestWorld(t)
	onlyPos := spawn(t, w, &position{})
	posFrozen := spawn(t, w, &position{}, &frozen{})
	posFrozenHidden := spawn(t, w, &position{}, &frozen{}, &hidden{})
	w.CreateEntity().AddComponent(&position{}) // never published

	required := mustMask(t, w, "test.position")
	excluded := mustMask(t, w, "test.frozen", "test.hidden")

	got := w.EntitiesMatching(required, excluded)
	if len(got) != 2 || got[0] != onlyPos || got[1] != posFrozen {
		t.Fatalf("expected [%d %d], got %v", onlyPos, posFrozen, got)
	}

	all := w.EntitiesMatching(required, 0)
	if len(all) != 3 || all[2] != posFrozenHidden {
		t.Fatalf("zero exclusion should keep every published match, got %v", all)
	}
}

func TestEachVisitsPublishedHolders(t *testing.T) {
	w := newTestWorld(t)
	a := spawn(t, w, &position{X: 1}, &velocity{X: 10})
	spawn(t, w, &position{X: 2})
	w.CreateEntity().AddComponent(&position{X: 3}).AddComponent(&velocity{})

	var sum float64
	Each(w, func(_ EntityID, p *position) { sum += p.X })
	if sum != 3 {
		t.Fatalf("Each visited wrong entities, sum=%v", sum)
	}

	var pairs []EntityID
	Each2(w, func(id EntityID, p *position, v *velocity) {
		p.X += v.X
		pairs = append(pairs, id)
	})
	if len(pairs) != 1 || pairs[0] != a {
		t.Fatalf("Each2 visited %v, want [%d]", pairs, a)
	}
	if p, _ := Get[*position](w, a); p.X != 11 {
		t.Fatalf("Each2 should hand out references, X=%v", p.X)
	}
}

func TestKillAndDestroyQueue(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w, &position{})
	if !w.Kill(id) {
		t.Fatal("Kill should find the status component")
	}
	st, _ := Get[*Status](w, id)
	if st.Alive {
		t.Fatal("status should be dead")
	}

	w.MarkForDestruction(id)
	w.MarkForDestruction(EntityID(w.Capacity() + 1))
	if !w.Published(id) {
		t.Fatal("marking must not destroy immediately")
	}
	w.FlushDestroyQueue()
	if w.Published(id) || w.EntityBitmask(id) != 0 {
		t.Fatal("flush should destroy queued entities")
	}
	if w.Kill(id) {
		t.Fatal("Kill on an empty slot should report false")
	}
}

func TestObserverEventsRaisedDuringFanOutAreQueued(t *testing.T) {
	w := newTestWorld(t)
	other := spawn(t, w)

	var order []string
	w.Observe(ObserverFunc(func(ev EntityEvent) {
		order = append(order, "first:"+ev.Kind.String())
		if ev.Kind == EntityAdded {
			// Raises a changed event while the added event is being fanned out.
			if err := w.AddComponent(other, &velocity{}); err != nil {
				t.Error(err)
			}
		}
	}))
	w.Observe(ObserverFunc(func(ev EntityEvent) {
		order = append(order, "second:"+ev.Kind.String())
	}))

	spawn(t, w, &position{})

	want := []string{"first:added", "second:added", "first:changed", "second:changed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestObserveCancel(t *testing.T) {
	w := newTestWorld(t)
	rec := &recorder{}
	cancel := w.Observe(rec)
	spawn(t, w)
	cancel()
	spawn(t, w)
	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event before cancel, got %d", len(rec.events))
	}
}

func TestDeferRunsOnNextUpdate(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Defer(func(w *World) { w.Kill(id) })
		}()
	}
	wg.Wait()

	if st, _ := Get[*Status](w, id); !st.Alive {
		t.Fatal("deferred actions must wait for Update")
	}
	w.Update(time.Millisecond)
	if st, _ := Get[*Status](w, id); st.Alive {
		t.Fatal("deferred action should have run during Update")
	}
}

func TestTickDeliveryDrainsOneBatchPerUpdate(t *testing.T) {
	w := newTestWorld(t)
	var got []string
	w.SubscribeMessages(func(m event.Message) { got = append(got, m.(*event.Text).Body) })

	for _, body := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		w.SendMessage(event.NewText("note", body))
	}
	w.Update(time.Millisecond)
	if len(got) != 10 {
		t.Fatalf("expected one batch of 10, got %d", len(got))
	}
	w.Update(time.Millisecond)
	if len(got) != 12 || got[0] != "a" || got[11] != "l" {
		t.Fatalf("expected FIFO delivery of all 12, got %v", got)
	}
}

func TestOnMessageRunsOnSimulationGoroutine(t *testing.T) {
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	w := NewWorld(opts, zaptest.NewLogger(t))
	defer w.Close()

	id := spawn(t, w)
	delivered := make(chan struct{}, 1)
	w.OnMessage(func(w *World, m event.Message) {
		w.Kill(id)
	})
	w.SubscribeMessages(func(event.Message) { delivered <- struct{}{} })

	w.SendMessage(event.NewText("kill", ""))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("message was never dispatched")
	}

	if st, _ := Get[*Status](w, id); !st.Alive {
		t.Fatal("OnMessage handlers must not touch the world before Update")
	}
	w.Update(time.Millisecond)
	if st, _ := Get[*Status](w, id); st.Alive {
		t.Fatal("OnMessage handler should have run during Update")
	}
}

func TestAddToWorldRejectsEmptySlot(t *testing.T) {
	w := newTestWorld(t)
	// Slot 0 was never handed out by CreateEntity.
	if err := w.AddToWorld(0); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity, got %v", err)
	}
	if w.Published(0) {
		t.Fatal("empty slot must stay unpublished")
	}
	if e := w.CreateEntity(); e.ID != 0 {
		t.Fatalf("slot 0 should still be free, got %d", e.ID)
	}
}

func TestFlushDestroysEntitiesMarkedDuringFlush(t *testing.T) {
	w := newTestWorld(t)
	a := spawn(t, w, &position{})
	b := spawn(t, w, &position{})
	w.Observe(ObserverFunc(func(ev EntityEvent) {
		if ev.Kind == EntityRemoved && ev.ID == a {
			w.MarkForDestruction(b)
		}
	}))

	w.MarkForDestruction(a)
	w.FlushDestroyQueue()

	if w.Published(a) || w.Published(b) {
		t.Fatalf("a published=%v b published=%v, want both destroyed", w.Published(a), w.Published(b))
	}
}

func TestFlushSkipsReusedSlot(t *testing.T) {
	w := newTestWorld(t)
	a := spawn(t, w, &position{})
	w.MarkForDestruction(a)
	if err := w.DestroyEntity(a); err != nil {
		t.Fatal(err)
	}
	c := spawn(t, w, &velocity{})
	if c != a {
		t.Fatalf("expected slot %d to be reused, got %d", a, c)
	}

	w.FlushDestroyQueue()
	if !w.Published(c) || !w.Has(c, "test.velocity") {
		t.Fatal("flush must not destroy the entity that reused a queued slot")
	}
}
