package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/experiment"
	"github.com/itsneelabh/kaizen/kaizen"
	"github.com/itsneelabh/kaizen/metrics"
	"github.com/itsneelabh/kaizen/opportunity"
	"github.com/itsneelabh/kaizen/safety"
)

func newTestEngine(t *testing.T) *kaizen.Engine {
	t.Helper()
	bus := events.NewBus()
	reg := metrics.New()
	safe := safety.NewEvaluator(safety.Config{Bus: bus})
	detector := opportunity.NewDetector(opportunity.Config{})
	backend := experiment.NewMockBackend()

	e, err := kaizen.New(kaizen.Config{DetectionInterval: time.Hour}, bus, reg, safe, detector, backend)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })
	return e
}

func TestDispatchHelpPrintsCommandList(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	cont := dispatch("help", e, &buf)
	assert.True(t, cont)
	assert.Contains(t, buf.String(), "rollback <id> [why]")
}

func TestDispatchStatusReportsRunningState(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	dispatch("status", e, &buf)
	assert.Contains(t, buf.String(), "running=true")
}

func TestDispatchPauseResumeTogglesEngine(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer

	dispatch("pause", e, &buf)
	assert.True(t, e.IsPaused())
	assert.Contains(t, buf.String(), "paused")

	buf.Reset()
	dispatch("resume", e, &buf)
	assert.False(t, e.IsPaused())
	assert.Contains(t, buf.String(), "resumed")
}

func TestDispatchExitAndQuitStopTheLoop(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	assert.False(t, dispatch("exit", e, &buf))
	assert.False(t, dispatch("quit", e, &buf))
}

func TestDispatchUnknownCommandReportsItself(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	cont := dispatch("frobnicate", e, &buf)
	assert.True(t, cont)
	assert.Contains(t, buf.String(), `unknown command "frobnicate"`)
}

func TestDispatchRollbackRequiresExperimentArg(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	dispatch("rollback", e, &buf)
	assert.Contains(t, buf.String(), "usage: rollback")
}

func TestDispatchRollbackUnknownExperimentReportsFailure(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	dispatch("rollback missing-experiment", e, &buf)
	assert.Contains(t, buf.String(), "rollback failed")
}

func TestDispatchRollbackSucceedsOnActiveExperiment(t *testing.T) {
	bus := events.NewBus()
	reg := metrics.New()
	require.NoError(t, reg.RegisterGauge("shim_crash_prediction_accuracy", "accuracy"))
	safe := safety.NewEvaluator(safety.Config{Bus: bus})
	detector := opportunity.NewDetector(opportunity.Config{MinConfidence: 0, MinImpact: 0, MinSampleSize: 0})
	backend := experiment.NewMockBackend()

	created := make(chan string, 1)
	bus.Subscribe(events.KindExperimentCreated, func(ev events.Event) {
		created <- ev.Payload.(events.ExperimentCreated).Experiment
	})

	e, err := kaizen.New(kaizen.Config{DetectionInterval: 10 * time.Millisecond}, bus, reg, safe, detector, backend)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, reg.ObserveGauge("shim_crash_prediction_accuracy", 0.5))
	}
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })

	var name string
	select {
	case name = <-created:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for detection cycle to create an experiment")
	}

	var buf bytes.Buffer
	cont := dispatch("rollback "+name+" operator requested", e, &buf)
	assert.True(t, cont)
	assert.Contains(t, buf.String(), "rolled back "+name)
}
