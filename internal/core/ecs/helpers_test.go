package ecs

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

// stub components used only in tests
type position struct{ X, Y float64 }

func (*position) ComponentKind() Kind { return "test.position" }

type velocity struct{ X, Y float64 }

func (*velocity) ComponentKind() Kind { return "test.velocity" }

type frozen struct{}

func (*frozen) ComponentKind() Kind { return "test.frozen" }

type hidden struct{}

func (*hidden) ComponentKind() Kind { return "test.hidden" }

func newTestWorld(t *testing.T) *World {
	t.Helper()
	opts := DefaultOptions()
	opts.TickDelivery = true
	w := NewWorld(opts, zaptest.NewLogger(t))
	t.Cleanup(w.Close)
	return w
}

func mustMask(t *testing.T, w *World, kinds ...Kind) Mask {
	t.Helper()
	m, err := w.Mask(kinds...)
	if err != nil {
		t.Fatalf("mask %v: %v", kinds, err)
	}
	return m
}

func spawn(t *testing.T, w *World, comps ...Component) EntityID {
	t.Helper()
	e := w.CreateEntity()
	for _, c := range comps {
		e.AddComponent(c)
	}
	if err := e.AddToWorld().Err(); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return e.ID
}

// recorder collects lifecycle events in delivery order.
type recorder struct {
	events []EntityEvent
}

func (r *recorder) OnEntityEvent(ev EntityEvent) { r.events = append(r.events, ev) }
