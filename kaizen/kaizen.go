// Package kaizen implements the central control plane: three
// independent periodic loops (detection, safety, progress) that wire
// together the metric registry, safety-bounds evaluator, opportunity
// detector, and experimentation backend into the closed
// detect -> experiment -> gate -> deploy/rollback -> measure cycle.
package kaizen

import (
	"sort"
	"sync"
	"time"

	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/experiment"
	"github.com/itsneelabh/kaizen/kerrors"
	"github.com/itsneelabh/kaizen/metrics"
	"github.com/itsneelabh/kaizen/opportunity"
	"github.com/itsneelabh/kaizen/pkg/clock"
	"github.com/itsneelabh/kaizen/pkg/logger"
	"github.com/itsneelabh/kaizen/safety"
)

// hasNewMetricsSentinel is the single gauge whose presence the
// detection cycle treats as "metrics have been observed at all". This
// mirrors the source system's heuristic literally rather than
// generalizing to "any metric observed" (spec Open Question).
const hasNewMetricsSentinel = "shim_crash_prediction_accuracy"

// State is the engine's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

// Config configures an Engine. Zero values are replaced by defaults.
type Config struct {
	DetectionInterval        time.Duration // default 60s
	MinSampleSize            int           // default 10
	MaxConcurrentExperiments int           // default 5
	DeploymentThreshold      float64       // default 0.95
	MaxRetries               int           // default 3
	Clock                    clock.Clock
	Logger                   logger.Logger
}

// DefaultConfig returns the specification's defaults.
func DefaultConfig() Config {
	return Config{
		DetectionInterval:        60 * time.Second,
		MinSampleSize:            10,
		MaxConcurrentExperiments: 5,
		DeploymentThreshold:      0.95,
		MaxRetries:               3,
	}
}

// Stats are the engine's running counters, reported verbatim by
// GenerateStatusReport.
type Stats struct {
	OpportunitiesDetected  int
	ExperimentsCreated     int
	ExperimentsCompleted   int
	ExperimentsRolledBack  int
	Errors                 int
	LastDetectionCycle     time.Time
	LastSafetyCheck        time.Time
	LastProgressCheck      time.Time
}

// Engine is the Kaizen control plane. The zero value is not usable;
// construct with New.
type Engine struct {
	cfg    Config
	clk    clock.Clock
	log    logger.Logger
	bus    *events.Bus
	reg    *metrics.Registry
	safe   *safety.Evaluator
	detect *opportunity.Detector
	backend experiment.Backend

	mu                 sync.Mutex
	state              State
	paused             bool
	stats              Stats
	baselines          Baselines
	activeExperiments  map[string]experiment.Experiment
	completed          map[string]experiment.Experiment
	rollbacked         map[string]experiment.Experiment

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs an Engine. Fails with InvalidConfig if
// DetectionInterval is negative.
func New(cfg Config, bus *events.Bus, reg *metrics.Registry, safe *safety.Evaluator, detect *opportunity.Detector, backend experiment.Backend) (*Engine, error) {
	if cfg.DetectionInterval < 0 {
		return nil, kerrors.New("kaizen.New", "kaizen", kerrors.ErrInvalidConfig)
	}
	def := DefaultConfig()
	if cfg.DetectionInterval == 0 {
		cfg.DetectionInterval = def.DetectionInterval
	}
	if cfg.MinSampleSize == 0 {
		cfg.MinSampleSize = def.MinSampleSize
	}
	if cfg.MaxConcurrentExperiments == 0 {
		cfg.MaxConcurrentExperiments = def.MaxConcurrentExperiments
	}
	if cfg.DeploymentThreshold == 0 {
		cfg.DeploymentThreshold = def.DeploymentThreshold
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.NewDefaultLogger()
	}

	return &Engine{
		cfg:               cfg,
		clk:               clk,
		log:               lg.WithField("component", "kaizen-engine"),
		bus:               bus,
		reg:               reg,
		safe:              safe,
		detect:            detect,
		backend:           backend,
		activeExperiments: make(map[string]experiment.Experiment),
		completed:         make(map[string]experiment.Experiment),
		rollbacked:        make(map[string]experiment.Experiment),
	}, nil
}

// Initialize idempotently initializes the experimentation backend and
// moves the engine to StateInitialized.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateUninitialized {
		return nil
	}
	if err := e.backend.Initialize(); err != nil {
		return err
	}
	e.state = StateInitialized
	return nil
}

// Start launches the three control loops. Rejects a second start.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return kerrors.New("kaizen.Start", "kaizen", kerrors.ErrAlreadyStarted)
	}
	if e.state == StateUninitialized {
		e.mu.Unlock()
		if err := e.Initialize(); err != nil {
			return err
		}
		e.mu.Lock()
	}
	e.state = StateRunning
	e.paused = false
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.publish(events.KindStarted, nil)

	e.wg.Add(3)
	go e.loop(e.cfg.DetectionInterval, e.detectionCycle)
	go e.loop(e.cfg.DetectionInterval/2, e.safetyCycle)
	go e.loop(e.cfg.DetectionInterval*2, e.progressCycle)

	return nil
}

// Stop cancels every timer and transitions to StateStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	stopCh := e.stopCh
	e.mu.Unlock()

	close(stopCh)
	e.wg.Wait()
	e.publish(events.KindStopped, nil)
}

// Pause sets the skip flag; the three loops keep ticking but do no work.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	e.publish(events.KindPaused, nil)
}

// Resume clears the skip flag.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.publish(events.KindResumed, nil)
}

// IsRunning reports whether the engine is in StateRunning.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning
}

// IsPaused reports the current skip flag.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) isPausedOrStopped() (paused, stopped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused, e.state != StateRunning
}

// loop runs fn every interval until Stop closes stopCh. Each fn
// invocation is wrapped so a panic is recovered and recorded as an
// error event (phase "cycle") rather than killing the loop (spec §4.5
// error handling).
func (e *Engine) loop(interval time.Duration, fn func()) {
	defer e.wg.Done()
	ticker := e.clk.NewTicker(interval)
	defer ticker.Stop()

	e.mu.Lock()
	stopCh := e.stopCh
	e.mu.Unlock()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C():
			e.runCycle(fn)
		}
	}
}

func (e *Engine) runCycle(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.recordError("cycle", kerrors.Newf("kaizen.cycle", "kaizen", "panic: %v", r))
		}
	}()
	fn()
}

func (e *Engine) publish(kind events.Kind, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Kind: kind, Payload: payload})
}

func (e *Engine) recordError(phase string, err error) {
	e.mu.Lock()
	e.stats.Errors++
	e.mu.Unlock()
	e.publish(events.KindError, events.ErrorPayload{Phase: phase, Err: err, At: e.clk.Now()})
	e.log.Error("cycle error", "phase", phase, "error", err)
}

// Snapshot returns the registry's current metric snapshot.
func (e *Engine) Snapshot() metrics.Snapshot {
	return e.reg.Snapshot()
}

// ActiveExperimentCount returns the size of the activeExperiments map.
func (e *Engine) ActiveExperimentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeExperiments)
}

// sortedExperimentNames returns active experiment names in sorted
// order, for deterministic iteration in the progress/safety cycles.
func sortedExperimentNames(m map[string]experiment.Experiment) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
