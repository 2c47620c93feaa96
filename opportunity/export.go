package opportunity

import "strconv"

// ExperimentScaffold is the shape handed to the experimentation
// backend adapter's createExperiment operation.
type ExperimentScaffold struct {
	Name            string
	ControlValue    float64
	ControlDesc     string
	TreatmentValue  float64
	TreatmentDesc   string
	SuccessMetrics  []string
	Hypothesis      string
}

// successMetricsByType is the static table mapping each opportunity
// type to the metrics its experiment should track.
var successMetricsByType = map[Type][]string{
	TypeCheckpointIntervalOpt: {"shim_crash_prediction_accuracy", "shim_checkpoint_creation_time"},
	TypeCheckpointPerformance: {"shim_checkpoint_creation_time"},
	TypeResumeReliability:     {"shim_resume_success_rate"},
	TypeRoutingOpt:            {"model_routing_accuracy"},
	TypeTokenOpt:              {"token_cost_current"},
	TypeSupervisorPerf:        {"shim_supervisor_restart_time"},
	TypeMonitorLatency:        {"monitor_latency_ms"},
}

// ToScaffold maps o to an experiment scaffold: name is
// "<type>_<unixMillis>", control/treatment carry the current and
// proposed values, and successMetrics come from the static per-type
// table.
func ToScaffold(o Opportunity) ExperimentScaffold {
	ts := strconv.FormatInt(o.DetectedAt.UnixMilli(), 10)
	return ExperimentScaffold{
		Name:           string(o.Type) + "_" + ts,
		ControlValue:   o.CurrentValue,
		ControlDesc:    "Current configuration",
		TreatmentValue: o.ProposedValue,
		TreatmentDesc:  o.Hypothesis,
		SuccessMetrics: successMetricsByType[o.Type],
		Hypothesis:     o.Hypothesis,
	}
}
