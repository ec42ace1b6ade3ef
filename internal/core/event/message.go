package event

import "sync/atomic"

// Message is a transient payload passed between systems through a Bus.
type Message interface {
	MessageKind() string
	// Abort flags the message. Delivery continues; subscribers that care
	// check Aborted before acting.
	Abort()
	Aborted() bool
}

// BaseMessage implements the bookkeeping half of Message. Embed it in a
// payload struct and send a pointer to that struct:
//
//	type Damage struct {
//		event.BaseMessage
//		Target ecs.EntityID
//		Amount int
//	}
//
//	bus.Send(&Damage{BaseMessage: event.BaseMessage{Kind: "damage"}, Amount: 3})
type BaseMessage struct {
	Kind    string
	aborted atomic.Bool
}

func (m *BaseMessage) MessageKind() string { return m.Kind }
func (m *BaseMessage) Abort()              { m.aborted.Store(true) }
func (m *BaseMessage) Aborted() bool       { return m.aborted.Load() }

// Text is a message that carries nothing but its kind and a string body.
type Text struct {
	BaseMessage
	Body string
}

func NewText(kind, body string) *Text {
	return &Text{BaseMessage: BaseMessage{Kind: kind}, Body: body}
}
