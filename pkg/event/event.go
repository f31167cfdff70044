// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event
type Type string

// Simulation event types
const (
	KeyTransition     Type = "key_transition"
	RegimeChanged     Type = "regime_changed"
	GimbalLock        Type = "gimbal_lock"
	DeltaClamped      Type = "delta_clamped"
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription is returned by Subscribe. Calling Cancel removes the handler.
type Subscription struct {
	ID     uint64
	Type   Type
	Cancel func()
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching.
// Handlers run synchronously on the publishing goroutine.
type Bus struct {
	handlers map[Type][]registration
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]registration),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

// Unsubscribe removes the subscription. Cancelling twice is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.unsubscribe(sub.Type, sub.ID)
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[eventType]
	for i, r := range regs {
		if r.id == id {
			// Copy so a concurrent Publish iterating the old slice is unaffected.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = next
			}
			return
		}
	}
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	regs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, r := range regs {
		r.handler(event)
	}
}

// HandlerCount reports how many handlers are subscribed to eventType.
func (b *Bus) HandlerCount(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Specific event implementations

// KeyEvent records a physical key transition before normalization.
type KeyEvent struct {
	BaseEvent
	Code    int
	Pressed bool
	Mapped  bool
}

// NewKeyEvent creates a key transition event
func NewKeyEvent(source interface{}, code int, pressed, mapped bool) *KeyEvent {
	return &KeyEvent{
		BaseEvent: BaseEvent{EventType: KeyTransition, Source: source},
		Code:      code,
		Pressed:   pressed,
		Mapped:    mapped,
	}
}

// RegimeEvent reports a translation axis switching between idle,
// accelerate and brake.
type RegimeEvent struct {
	BaseEvent
	Frame uint64
	Axis  int
	From  string
	To    string
}

// NewRegimeEvent creates a regime change event
func NewRegimeEvent(source interface{}, frame uint64, axis int, from, to string) *RegimeEvent {
	return &RegimeEvent{
		BaseEvent: BaseEvent{EventType: RegimeChanged, Source: source},
		Frame:     frame,
		Axis:      axis,
		From:      from,
		To:        to,
	}
}

// GimbalEvent reports that attitude extraction hit a pole.
type GimbalEvent struct {
	BaseEvent
	Frame uint64
	Pitch float64
}

// NewGimbalEvent creates a gimbal lock event
func NewGimbalEvent(source interface{}, frame uint64, pitch float64) *GimbalEvent {
	return &GimbalEvent{
		BaseEvent: BaseEvent{EventType: GimbalLock, Source: source},
		Frame:     frame,
		Pitch:     pitch,
	}
}

// ClampEvent reports a frame delta that exceeded the clock's upper bound.
type ClampEvent struct {
	BaseEvent
	Frame   uint64
	Raw     float64
	Clamped float64
}

// NewClampEvent creates a delta clamp event
func NewClampEvent(source interface{}, frame uint64, raw, clamped float64) *ClampEvent {
	return &ClampEvent{
		BaseEvent: BaseEvent{EventType: DeltaClamped, Source: source},
		Frame:     frame,
		Raw:       raw,
		Clamped:   clamped,
	}
}

// LifecycleEvent marks the start or end of a simulation session.
type LifecycleEvent struct {
	BaseEvent
	SessionID string
	Frames    uint64
}

// NewLifecycleEvent creates a simulation start or stop event
func NewLifecycleEvent(eventType Type, source interface{}, sessionID string, frames uint64) *LifecycleEvent {
	return &LifecycleEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		SessionID: sessionID,
		Frames:    frames,
	}
}
