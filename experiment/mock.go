package experiment

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// exposureKey identifies one logged exposure.
type exposureKey struct {
	name    string
	variant string
}

// MockBackend is an in-memory reference implementation of Backend. It
// never performs I/O; GetExperimentResults returns the open
// significance-model stub the specification calls for (isSignificant
// false, pValue 1.0) unless a test has seeded results via
// SetResults.
type MockBackend struct {
	mu                  sync.Mutex
	initialized         bool
	shutdown            bool
	deploymentThreshold float64
	experiments         map[string]*Experiment
	results             map[string]Result
	assignments         map[string]Variant // key: userID+"|"+name
	exposures           map[string][]exposureKey
	events              []loggedEvent
	flushed             bool
	now                 func() time.Time
	cache               *RedisAssignmentCache
}

// MockBackendOption configures optional MockBackend behavior.
type MockBackendOption func(*MockBackend)

// WithAssignmentCache attaches a RedisAssignmentCache so variant
// assignments survive a process restart. Without one, MockBackend
// still assigns deterministically in memory; the cache only spares it
// from recomputing an assignment after a restart if the experiment's
// arm values have since changed.
func WithAssignmentCache(cache *RedisAssignmentCache) MockBackendOption {
	return func(m *MockBackend) { m.cache = cache }
}

type loggedEvent struct {
	name     string
	metadata map[string]interface{}
	userID   string
}

// NewMockBackend constructs an empty MockBackend.
func NewMockBackend(opts ...MockBackendOption) *MockBackend {
	m := &MockBackend{
		deploymentThreshold: 0.95,
		experiments:         make(map[string]*Experiment),
		results:             make(map[string]Result),
		assignments:         make(map[string]Variant),
		exposures:           make(map[string][]exposureKey),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize is idempotent.
func (m *MockBackend) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Initialized reports whether Initialize has been called.
func (m *MockBackend) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *MockBackend) newExperiment(opp Opportunity) Experiment {
	name := fmt.Sprintf("%s_%d", opp.Type, m.now().UnixMilli())
	return Experiment{
		ID:   uuid.NewString(),
		Name: name,
		Control: Arm{
			Name:        "control",
			Value:       opp.CurrentValue,
			Description: "Current configuration",
		},
		Treatment: Arm{
			Name:        "treatment",
			Value:       opp.ProposedValue,
			Description: opp.Hypothesis,
		},
		SuccessMetrics: opp.SuccessMetrics,
		Hypothesis:     opp.Hypothesis,
		CreatedAt:      m.now(),
		State:          StateRunning,
	}
}

// CreateExperiment creates and stores one experiment in the running state.
func (m *MockBackend) CreateExperiment(opp Opportunity) (Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := m.newExperiment(opp)
	m.experiments[exp.Name] = &exp
	return exp, nil
}

// CreateExperiments creates one experiment per opportunity, in order.
func (m *MockBackend) CreateExperiments(opps []Opportunity) ([]Experiment, error) {
	out := make([]Experiment, 0, len(opps))
	for _, opp := range opps {
		exp, err := m.CreateExperiment(opp)
		if err != nil {
			return out, err
		}
		out = append(out, exp)
	}
	return out, nil
}

// GetVariant returns a deterministic (userID, name) assignment. Unknown
// experiments return control with cached/zero value, per contract. If
// a RedisAssignmentCache was attached via WithAssignmentCache, a
// cached assignment from a previous process takes precedence over
// recomputing one, and any freshly computed assignment is written
// back to it.
func (m *MockBackend) GetVariant(name, userID string, attrs map[string]string) (Variant, error) {
	key := userID + "|" + name

	m.mu.Lock()
	if v, ok := m.assignments[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	cache := m.cache
	m.mu.Unlock()

	if cache != nil {
		if v, ok, err := cache.Get(context.Background(), name, userID); err == nil && ok {
			m.mu.Lock()
			m.assignments[key] = v
			m.mu.Unlock()
			return v, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.assignments[key]; ok {
		return v, nil
	}

	exp, ok := m.experiments[name]
	if !ok {
		v := Variant{Name: "control", Value: 0}
		m.assignments[key] = v
		return v, nil
	}

	v := Variant{Name: "control", Value: exp.Control.Value}
	if deterministicBucket(userID, name) < 0.5 {
		v = Variant{Name: "treatment", Value: exp.Treatment.Value}
	}
	m.assignments[key] = v
	if cache != nil {
		_ = cache.Set(context.Background(), name, userID, v)
	}
	return v, nil
}

// deterministicBucket maps (userID, name) to a stable value in [0,1).
func deterministicBucket(userID, name string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + "|" + name))
	return float64(h.Sum32()%10000) / 10000.0
}

// LogExposure records that userID was exposed to variantName in name.
func (m *MockBackend) LogExposure(name, userID, variantName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposures[name] = append(m.exposures[name], exposureKey{name: userID, variant: variantName})
	return nil
}

// LogEvent records a metadata event, optionally attributed to userID.
func (m *MockBackend) LogEvent(name string, metadata map[string]interface{}, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, loggedEvent{name: name, metadata: metadata, userID: userID})
	return nil
}

// Flush marks pending events as flushed; MockBackend has nothing to
// transmit, so this only flips a bookkeeping flag tests can observe.
func (m *MockBackend) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = true
	return nil
}

// GetExperimentResults returns seeded results if SetResults was
// called, otherwise the open significance-model stub the specification
// calls for: isSignificant=false, pValue=1.0.
func (m *MockBackend) GetExperimentResults(name string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.results[name]; ok {
		return r, nil
	}
	return Result{PValue: 1.0, Winner: "none"}, nil
}

// SetResults seeds the results a later GetExperimentResults call for
// name will return. Exists because the stub above carries no actual
// statistics; callers (or tests driving the deployment gate) supply
// them directly.
func (m *MockBackend) SetResults(name string, r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[name] = r
}

// ListExperiments returns every known experiment, unordered.
func (m *MockBackend) ListExperiments() ([]Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Experiment, 0, len(m.experiments))
	for _, e := range m.experiments {
		out = append(out, *e)
	}
	return out, nil
}

// GetExperimentConfig returns the stored experiment for name.
func (m *MockBackend) GetExperimentConfig(name string) (Experiment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[name]
	if !ok {
		return Experiment{}, false
	}
	return *e, true
}

// StopExperiment transitions name to stopped.
func (m *MockBackend) StopExperiment(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[name]
	if !ok {
		return errNotFound(name)
	}
	e.State = StateStopped
	return nil
}

// ArchiveExperiment transitions name to archived.
func (m *MockBackend) ArchiveExperiment(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[name]
	if !ok {
		return errNotFound(name)
	}
	e.State = StateArchived
	return nil
}

// Rollback transitions name to rolled_back and logs an
// experiment_rollback event.
func (m *MockBackend) Rollback(name, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[name]
	if !ok {
		return errNotFound(name)
	}
	e.State = StateRolledBack
	m.events = append(m.events, loggedEvent{
		name:     "experiment_rollback",
		metadata: map[string]interface{}{"experiment": name, "reason": reason},
	})
	return nil
}

// DeployWinner evaluates the deployment preconditions and, if met,
// transitions the experiment to deployed.
func (m *MockBackend) DeployWinner(name string) (DeployOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[name]
	if !ok {
		return DeployOutcome{Deployed: false, Reason: "Experiment not found"}, nil
	}

	result, ok := m.results[name]
	if !ok {
		return DeployOutcome{Deployed: false, Reason: "No results available"}, nil
	}

	if !result.IsSignificant {
		return DeployOutcome{Deployed: false, Reason: "Results not statistically significant"}, nil
	}
	if result.PValue > (1 - m.deploymentThreshold) {
		return DeployOutcome{Deployed: false, Reason: "p-value above deployment threshold"}, nil
	}
	if result.Winner != "control" && result.Winner != "treatment" {
		return DeployOutcome{Deployed: false, Reason: "No clear winner"}, nil
	}

	var previous, newValue float64
	previous = exp.Control.Value
	if result.Winner == "treatment" {
		newValue = exp.Treatment.Value
	} else {
		newValue = exp.Control.Value
	}

	exp.State = StateDeployed
	now := m.now()
	return DeployOutcome{
		Deployed:      true,
		Variant:       result.Winner,
		PreviousValue: previous,
		NewValue:      newValue,
		DeployedAt:    now,
	}, nil
}

// SetDeploymentThreshold sets the p-value gate used by DeployWinner.
func (m *MockBackend) SetDeploymentThreshold(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deploymentThreshold = p
}

// IsShutdown reports whether Shutdown has been called.
func (m *MockBackend) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Shutdown flushes pending events then marks the backend shut down.
// Idempotent.
func (m *MockBackend) Shutdown() error {
	if err := m.Flush(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	return nil
}
