package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/veracity-labs/veracity/pkg/audit"
	"github.com/veracity-labs/veracity/pkg/deception"
	"github.com/veracity-labs/veracity/pkg/evidence"
)

// runWatchCmd streams measurement events (JSONL, one event per line)
// through the deception monitor and prints every alert.
func runWatchCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("watch", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		eventsPath string
		configPath string
		auditPath  string
		logLevel   string
		jsonOutput bool
	)
	cmd.StringVar(&eventsPath, "events", "-", "Path to measurement event JSONL (- for stdin)")
	cmd.StringVar(&configPath, "config", "", "Optional tunables YAML")
	cmd.StringVar(&auditPath, "audit", "", "Optional audit trail JSONL to append to")
	cmd.StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	cmd.BoolVar(&jsonOutput, "json", false, "Print alerts as JSON instead of text")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := setupLogger(logLevel, stderr)

	trail, closeTrail, err := openAudit(auditPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeTrail()

	var in io.Reader = stdin
	if eventsPath != "-" {
		f, err := os.Open(eventsPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening events: %v\n", err)
			return 2
		}
		defer f.Close()
		in = f
	}

	monitor := deception.NewMonitorWith(cfg.Deception).WithLogger(logger)
	monitor.Start()
	defer monitor.Stop()

	ctx := context.Background()
	metrics, err := openMetrics(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = metrics.Shutdown(ctx) }()

	printAlert := func(a deception.Alert) {
		if jsonOutput {
			writeJSON(stdout, a)
		} else {
			fmt.Fprintf(stdout, "[%s] %s agent=%s confidence=%.2f action=%s\n",
				a.Severity, a.Pattern, a.AgentID, a.Confidence, a.RecommendedAction)
		}
		metrics.RecordAlert(ctx, string(a.Severity), a.Pattern)
		if trail != nil {
			_ = trail.Record(ctx, audit.EventAlert, a.AgentID, "alert_emitted", map[string]any{
				"pattern":    a.Pattern,
				"severity":   string(a.Severity),
				"confidence": a.Confidence,
			})
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines, alerts := 0, 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++

		var event evidence.MeasurementEvent
		if err := json.Unmarshal(line, &event); err != nil {
			logger.Warn("skipping malformed event", "line", lines, "error", err)
			continue
		}
		for _, a := range monitor.Ingest(event) {
			alerts++
			printAlert(a)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "Error reading events: %v\n", err)
		return 1
	}

	// One closing drift pass over everything ingested.
	for _, a := range monitor.ScanOnce() {
		alerts++
		printAlert(a)
	}

	logger.Info("watch complete", "events", lines, "alerts", alerts)
	if alerts > 0 {
		return 1
	}
	return 0
}
