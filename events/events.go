// Package events implements the typed publish/subscribe bus that the
// Kaizen engine, safety-bounds evaluator, and orchestrator use in place
// of the source system's EventEmitter. Publish invokes listeners one at
// a time on the publishing goroutine, so events published from one
// goroutine reach each listener in publish order, which preserves the
// per-cycle emission ordering the engine's control loops depend on.
// Publishes from different goroutines are not serialized against each
// other.
package events

import (
	"sync"
)

// Kind identifies an event's type. Payload shape is documented per Kind
// at the call site that publishes it.
type Kind string

const (
	KindStarted              Kind = "started"
	KindStopped               Kind = "stopped"
	KindPaused                Kind = "paused"
	KindResumed               Kind = "resumed"
	KindDetectionCycle        Kind = "detection_cycle"
	KindDetectionSkipped      Kind = "detection_skipped"
	KindOpportunitiesDetected Kind = "opportunities_detected"
	KindExperimentCreated     Kind = "experiment_created"
	KindExperimentRejected    Kind = "experiment_rejected"
	KindMaxExperimentsReached Kind = "max_experiments_reached"
	KindSafetyCheck           Kind = "safety_check"
	KindSafetyViolation       Kind = "safety_violation"
	KindAutoRollback          Kind = "auto_rollback"
	KindProgressCheck         Kind = "progress_check"
	KindProgressUpdate        Kind = "progress_update"
	KindAutoDeployed          Kind = "auto_deployed"
	KindDeploymentRejected    Kind = "deployment_rejected"
	KindError                 Kind = "error"

	KindViolation          Kind = "violation"
	KindCriticalViolation  Kind = "critical_violation"
	KindRollbackRecommended Kind = "rollback_recommended"

	KindExperimentRollback Kind = "experiment_rollback"

	KindCycleExecuted   Kind = "cycle_executed"
	KindMaxCyclesReached Kind = "max_cycles_reached"
	KindGoalRegistered  Kind = "goal_registered"
)

// Event is the envelope every listener receives. Payload is one of the
// typed structs in payloads.go, asserted by the listener as needed.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// Listener receives events of the kinds it subscribed to.
type Listener func(Event)

// Bus is a concurrency-safe event dispatcher: Subscribe, SubscribeAll
// and Publish may be called from any goroutine. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu        sync.Mutex
	listeners map[Kind][]Listener
	wildcard  []Listener
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[Kind][]Listener)}
}

// Subscribe registers fn to be invoked for every event of kind. Order
// of delivery among multiple subscribers to the same kind follows
// registration order.
func (b *Bus) Subscribe(kind Kind, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], fn)
}

// SubscribeAll registers fn for every event published on the bus,
// regardless of kind. Used by operator tooling that mirrors the full
// stream (e.g. the kaizenctl REPL).
func (b *Bus) SubscribeAll(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, fn)
}

// Publish delivers ev to every matching listener, in subscription
// order, then to every wildcard listener. Publish does not return
// until every listener has been invoked — callers that emit events
// from within a control-loop cycle rely on this for in-cycle ordering.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	kindListeners := append([]Listener(nil), b.listeners[ev.Kind]...)
	wildcard := append([]Listener(nil), b.wildcard...)
	b.mu.Unlock()

	for _, fn := range kindListeners {
		fn(ev)
	}
	for _, fn := range wildcard {
		fn(ev)
	}
}
