// Package logger provides structured logging used throughout the kaizen module.
//
// The Logger interface supports leveled, structured logging and child loggers
// carrying persistent fields:
//
//	log := logger.NewDefaultLogger()
//	cycleLog := log.WithField("component", "kaizen-engine")
//	cycleLog.Info("detection cycle started", "interval_ms", 60000)
//
// SimpleLogger is a dependency-free implementation suitable for both
// production and tests; callers that want JSON/OTel-backed logging can
// supply their own Logger implementation.
package logger
