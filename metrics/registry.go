// Package metrics implements the typed metric registry (gauges,
// counters, histograms) that the rest of the kaizen module reads from
// and a few producers write to. It is backed by prometheus/client_golang
// so that exposition is Prometheus-text-format compatible by
// construction rather than by a hand-rolled encoder.
package metrics

import (
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/itsneelabh/kaizen/kerrors"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_:][A-Za-z0-9_:]*$`)

// ValidName reports whether name is a legal metric or label key.
func ValidName(name string) bool { return nameRE.MatchString(name) }

type kind int

const (
	kindGauge kind = iota
	kindCounter
	kindHistogram
)

type entry struct {
	kind       kind
	help       string
	labelKeys  []string
	gauge      *prometheus.GaugeVec
	counter    *prometheus.CounterVec
	histogram  *prometheus.HistogramVec
}

// Registry is a concurrency-safe, typed metric store. The zero value is
// not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	reg     *prometheus.Registry
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		reg:     prometheus.NewRegistry(),
		entries: make(map[string]*entry),
	}
}

// RegisterGauge declares a gauge metric. Calling it again with the same
// name is a silent no-op — duplicate registration must never raise.
func (r *Registry) RegisterGauge(name, help string, labelKeys ...string) error {
	return r.register(name, help, kindGauge, nil, labelKeys...)
}

// RegisterCounter declares a counter metric.
func (r *Registry) RegisterCounter(name, help string, labelKeys ...string) error {
	return r.register(name, help, kindCounter, nil, labelKeys...)
}

// RegisterHistogram declares a histogram metric with ascending bucket
// boundaries. The Prometheus client appends the implicit +Inf bucket.
func (r *Registry) RegisterHistogram(name, help string, buckets []float64, labelKeys ...string) error {
	return r.register(name, help, kindHistogram, buckets, labelKeys...)
}

func (r *Registry) register(name, help string, k kind, buckets []float64, labelKeys ...string) error {
	if !ValidName(name) {
		return kerrors.New("metrics.Register", "metrics", kerrors.ErrInvalidInput).WithID(name)
	}
	for _, l := range labelKeys {
		if !ValidName(l) {
			return kerrors.Newf("metrics.Register", "metrics", "invalid label key %q", l).WithID(l)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return nil
	}

	e := &entry{kind: k, help: help, labelKeys: labelKeys}
	switch k {
	case kindGauge:
		e.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelKeys)
		if err := r.reg.Register(e.gauge); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				e.gauge = are.ExistingCollector.(*prometheus.GaugeVec)
			} else {
				return kerrors.New("metrics.Register", "metrics", err).WithID(name)
			}
		}
	case kindCounter:
		e.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelKeys)
		if err := r.reg.Register(e.counter); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				e.counter = are.ExistingCollector.(*prometheus.CounterVec)
			} else {
				return kerrors.New("metrics.Register", "metrics", err).WithID(name)
			}
		}
	case kindHistogram:
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		e.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelKeys)
		if err := r.reg.Register(e.histogram); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				e.histogram = are.ExistingCollector.(*prometheus.HistogramVec)
			} else {
				return kerrors.New("metrics.Register", "metrics", err).WithID(name)
			}
		}
	}

	r.entries[name] = e
	return nil
}

// ObserveGauge sets an unlabeled gauge's current value, auto-registering
// it with an empty help string on first use.
func (r *Registry) ObserveGauge(name string, value float64) error {
	return r.ObserveGaugeWithLabels(name, nil, value)
}

// ObserveGaugeWithLabels sets a gauge's value for a specific label tuple.
func (r *Registry) ObserveGaugeWithLabels(name string, labels map[string]string, value float64) error {
	e, err := r.ensure(name, kindGauge, labelKeysOf(labels))
	if err != nil {
		return err
	}
	gv, err := r.gaugeFor(e)
	if err != nil {
		return err
	}
	gv.With(toLabels(labels)).Set(value)
	return nil
}

// IncrementCounter adds delta (default 1 when 0 is passed is the
// caller's choice, per the spec's incrementCounter(name, delta=1, labels?))
// to a counter, auto-registering it on first use.
func (r *Registry) IncrementCounter(name string, delta float64, labels map[string]string) error {
	e, err := r.ensure(name, kindCounter, labelKeysOf(labels))
	if err != nil {
		return err
	}
	cv, err := r.counterFor(e)
	if err != nil {
		return err
	}
	cv.With(toLabels(labels)).Add(delta)
	return nil
}

// ObserveHistogram records a sample into an unlabeled histogram,
// auto-registering it with default buckets on first use.
func (r *Registry) ObserveHistogram(name string, value float64) error {
	e, err := r.ensure(name, kindHistogram, nil)
	if err != nil {
		return err
	}
	hv, err := r.histogramFor(e)
	if err != nil {
		return err
	}
	hv.With(prometheus.Labels{}).Observe(value)
	return nil
}

func (r *Registry) ensure(name string, k kind, labelKeys []string) (*entry, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()
	if exists {
		return e, nil
	}
	if !ValidName(name) {
		return nil, kerrors.New("metrics.Observe", "metrics", kerrors.ErrInvalidInput).WithID(name)
	}
	if err := r.register(name, "", k, nil, labelKeys...); err != nil {
		return nil, err
	}
	r.mu.RLock()
	e = r.entries[name]
	r.mu.RUnlock()
	return e, nil
}

func (r *Registry) gaugeFor(e *entry) (*prometheus.GaugeVec, error) {
	if e.kind != kindGauge {
		return nil, kerrors.Newf("metrics.Observe", "metrics", "metric is not a gauge")
	}
	return e.gauge, nil
}

func (r *Registry) counterFor(e *entry) (*prometheus.CounterVec, error) {
	if e.kind != kindCounter {
		return nil, kerrors.Newf("metrics.Observe", "metrics", "metric is not a counter")
	}
	return e.counter, nil
}

func (r *Registry) histogramFor(e *entry) (*prometheus.HistogramVec, error) {
	if e.kind != kindHistogram {
		return nil, kerrors.Newf("metrics.Observe", "metrics", "metric is not a histogram")
	}
	return e.histogram, nil
}

// GetValue returns a gauge's current value or a counter's total across
// all label tuples. Histograms have no single value; use GetHistogramStats.
func (r *Registry) GetValue(name string) (float64, bool) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists {
		return 0, false
	}
	switch e.kind {
	case kindGauge:
		total, n := sumVec(e.gauge)
		if n == 0 {
			return 0, false
		}
		return total, true
	case kindCounter:
		total, n := sumVec(e.counter)
		if n == 0 {
			return 0, false
		}
		return total, true
	default:
		return 0, false
	}
}

// HistogramStats is a point-in-time read of a histogram's cumulative
// count and sum across all label tuples.
type HistogramStats struct {
	Count uint64
	Sum   float64
}

// GetHistogramStats returns the total sample count and sum for name.
func (r *Registry) GetHistogramStats(name string) (HistogramStats, bool) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists || e.kind != kindHistogram {
		return HistogramStats{}, false
	}
	var stats HistogramStats
	found := false
	walkVec(e.histogram, func(m *dto.Metric) {
		found = true
		stats.Count += m.GetHistogram().GetSampleCount()
		stats.Sum += m.GetHistogram().GetSampleSum()
	})
	if !found {
		return HistogramStats{}, false
	}
	return stats, true
}

// GetCounterValue returns the exact value for a label tuple (0 if
// unseen), or the sum across all tuples when labels is nil/empty.
func (r *Registry) GetCounterValue(name string, labels map[string]string) float64 {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists || e.kind != kindCounter {
		return 0
	}
	if len(labels) == 0 {
		total, _ := sumVec(e.counter)
		return total
	}
	c, err := e.counter.GetMetricWith(toLabels(labels))
	if err != nil {
		return 0
	}
	var pb dto.Metric
	_ = c.Write(&pb)
	return pb.GetCounter().GetValue()
}

// Reset zeros every registered metric's values; registrations survive.
// Gauge series keep their label tuples and read 0; counter and histogram
// series are removed, so a counter totals 0 and a histogram has no
// samples until it is observed again.
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		switch e.kind {
		case kindGauge:
			var tuples []prometheus.Labels
			walkVec(e.gauge, func(m *dto.Metric) {
				l := prometheus.Labels{}
				for _, lp := range m.GetLabel() {
					l[lp.GetName()] = lp.GetValue()
				}
				tuples = append(tuples, l)
			})
			for _, l := range tuples {
				e.gauge.With(l).Set(0)
			}
		case kindCounter:
			e.counter.Reset()
		case kindHistogram:
			e.histogram.Reset()
		}
	}
}

func labelKeysOf(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	return keys
}

func toLabels(labels map[string]string) prometheus.Labels {
	if labels == nil {
		return prometheus.Labels{}
	}
	return prometheus.Labels(labels)
}

// sumVec adds up the current value of every child collected from c,
// returning the total and the number of children observed.
func sumVec(c prometheus.Collector) (float64, int) {
	var total float64
	n := 0
	walkVec(c, func(m *dto.Metric) {
		n++
		if m.Gauge != nil {
			total += m.GetGauge().GetValue()
		}
		if m.Counter != nil {
			total += m.GetCounter().GetValue()
		}
	})
	return total, n
}

// walkVec collects every child metric from a Vec-like collector and
// decodes it into the wire format, invoking fn once per child. This is
// how the registry reads current values back out of the Prometheus
// client without parsing its own text exposition.
func walkVec(c prometheus.Collector, fn func(*dto.Metric)) {
	ch := make(chan prometheus.Metric)
	done := make(chan struct{})
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	go func() {
		for m := range ch {
			var pb dto.Metric
			_ = m.Write(&pb)
			fn(&pb)
		}
		close(done)
	}()
	<-done
}
