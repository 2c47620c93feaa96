// Command kaizenctl is the operator REPL for a running kaizen engine:
// it wires the control plane up locally (an in-process engine plus a
// mock experimentation backend) and lets an operator watch the event
// stream and issue pause/resume/rollback/report commands interactively.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"github.com/itsneelabh/kaizen/config"
	"github.com/itsneelabh/kaizen/events"
	"github.com/itsneelabh/kaizen/experiment"
	"github.com/itsneelabh/kaizen/kaizen"
	"github.com/itsneelabh/kaizen/metrics"
	"github.com/itsneelabh/kaizen/opportunity"
	"github.com/itsneelabh/kaizen/pkg/logger"
	"github.com/itsneelabh/kaizen/safety"
)

func main() {
	_ = godotenv.Load(".env")

	cfgPath := os.Getenv("KAIZEN_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kaizenctl: loading config: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	reg := metrics.New()
	safe := safety.NewEvaluator(safety.Config{Bus: bus, Bounds: cfg.SafetyBounds})
	detector := opportunity.NewDetector(opportunity.Config{})
	backend := experiment.NewMockBackend()

	log := logger.NewDefaultLogger()

	engine, err := kaizen.New(kaizen.Config{
		DetectionInterval:        cfg.Kaizen.DetectionInterval,
		MinSampleSize:            cfg.Kaizen.MinSampleSize,
		MaxConcurrentExperiments: cfg.Kaizen.MaxConcurrentExperiments,
		DeploymentThreshold:      cfg.Kaizen.DeploymentThreshold,
		MaxRetries:               cfg.Kaizen.MaxRetries,
		Logger:                   log,
	}, bus, reg, safe, detector, backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kaizenctl: constructing engine: %v\n", err)
		os.Exit(1)
	}

	bus.SubscribeAll(func(ev events.Event) {
		fmt.Printf("\033[2m[%s]\033[0m %s\n", time.Now().Format("15:04:05"), ev.Kind)
	})

	if err := engine.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "kaizenctl: starting engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Stop()

	runREPL(engine)
}

func runREPL(engine *kaizen.Engine) {
	homeDir, _ := os.UserHomeDir()
	histFile := filepath.Join(homeDir, ".cache", "kaizenctl_history")
	_ = os.MkdirAll(filepath.Dir(histFile), 0o755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[36mkaizen>\033[0m ",
		HistoryFile:       histFile,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kaizenctl: readline init: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Println("kaizen control plane — type 'help' for commands, 'exit' to quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if !dispatch(input, engine, os.Stdout) {
			return
		}
	}
}

// dispatch runs one REPL command line against engine, writing all
// output to out. It returns false when the command should terminate
// the REPL (exit/quit), true otherwise. Split out of runREPL so the
// command set can be tested without driving a real readline terminal.
func dispatch(input string, engine *kaizen.Engine, out io.Writer) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "exit", "quit":
		return false
	case "help":
		printHelp(out)
	case "status":
		printStatus(engine, out)
	case "report":
		printReport(engine, out)
	case "pause":
		engine.Pause()
		fmt.Fprintln(out, "paused")
	case "resume":
		engine.Resume()
		fmt.Fprintln(out, "resumed")
	case "rollback":
		if len(args) < 1 {
			fmt.Fprintln(out, "usage: rollback <experiment> [reason]")
			return true
		}
		reason := "operator requested"
		if len(args) > 1 {
			reason = strings.Join(args[1:], " ")
		}
		if err := engine.Rollback(args[0], reason); err != nil {
			fmt.Fprintf(out, "rollback failed: %v\n", err)
			return true
		}
		fmt.Fprintf(out, "rolled back %s\n", args[0])
	default:
		fmt.Fprintf(out, "unknown command %q — type 'help'\n", cmd)
	}
	return true
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  status              current engine state, pause flag, active experiment count
  report               status report + improvement report (ROI)
  pause                pause the three control loops
  resume               resume the control loops
  rollback <id> [why]  manually roll back an active experiment
  exit | quit          leave kaizenctl`)
}

func printStatus(engine *kaizen.Engine, out io.Writer) {
	fmt.Fprintf(out, "running=%v paused=%v active=%d\n", engine.IsRunning(), engine.IsPaused(), engine.ActiveExperimentCount())
}

func printReport(engine *kaizen.Engine, out io.Writer) {
	sr := engine.GenerateStatusReport()
	ir := engine.GenerateImprovementReport()
	fmt.Fprintf(out, "state=%v opportunities=%d created=%d completed=%d rolledBack=%d errors=%d\n",
		sr.State, sr.OpportunitiesDetected, sr.ExperimentsCreated, sr.ExperimentsCompleted, sr.ExperimentsRolledBack, sr.Errors)
	fmt.Fprintf(out, "roi: crashReduction=%.3f performanceGain=%.3f tokenSavings=%.3f\n",
		ir.ROI.CrashReduction, ir.ROI.PerformanceGain, ir.ROI.TokenSavings)
}
