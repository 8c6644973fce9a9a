package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/veracity-labs/veracity/pkg/evidence"
	"github.com/veracity-labs/veracity/pkg/ledger"
)

// runAnalyzeCmd feeds a batch of measurement events (JSONL, one event
// per line) through the verification ledger, grouped by agent, and
// prints the updated trust profiles. Profiles persist to the SQLite
// database configured via --db or VERACITY_PROFILE_DB; without one the
// run uses an ephemeral in-memory store.
func runAnalyzeCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		eventsPath string
		configPath string
		dbPath     string
		auditPath  string
		logLevel   string
		jsonOutput bool
	)
	cmd.StringVar(&eventsPath, "events", "-", "Path to measurement event JSONL (- for stdin)")
	cmd.StringVar(&configPath, "config", "", "Optional tunables YAML")
	cmd.StringVar(&dbPath, "db", "", "SQLite profile database (overrides VERACITY_PROFILE_DB)")
	cmd.StringVar(&auditPath, "audit", "", "Optional audit trail JSONL to append to")
	cmd.StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	cmd.BoolVar(&jsonOutput, "json", false, "Print profiles as JSON instead of text")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if dbPath != "" {
		cfg.ProfileDB = dbPath
	}
	logger := setupLogger(logLevel, stderr)

	trail, closeTrail, err := openAudit(auditPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeTrail()

	var store ledger.ProfileStore = ledger.NewMemoryStore()
	if cfg.ProfileDB != "" {
		sqlStore, err := ledger.OpenSQLiteStore(cfg.ProfileDB)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	ctx := context.Background()
	metrics, err := openMetrics(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = metrics.Shutdown(ctx) }()

	led := ledger.NewLedgerWith(store, cfg.Ledger).WithLogger(logger).WithMetrics(metrics)
	if trail != nil {
		led = led.WithAudit(trail)
	}

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

	batches := make(map[string][]evidence.MeasurementEvent)
	var agents []string

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := 0
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
		if _, ok := batches[event.AgentID]; !ok {
			agents = append(agents, event.AgentID)
		}
		batches[event.AgentID] = append(batches[event.AgentID], event)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "Error reading events: %v\n", err)
		return 1
	}

	flagged := 0
	for _, agentID := range agents {
		profile, err := led.Analyze(ctx, agentID, batches[agentID])
		if err != nil {
			fmt.Fprintf(stderr, "Error analyzing %s: %v\n", agentID, err)
			return 1
		}
		if len(profile.RiskFactors) > 0 {
			flagged++
		}
		if jsonOutput {
			writeJSON(stdout, profile)
		} else {
			fmt.Fprintf(stdout, "agent=%s trust=%.1f tier=%s risk_factors=[%s]\n",
				profile.AgentID, profile.TrustScore, profile.Tier,
				strings.Join(profile.RiskFactors, " "))
		}
	}

	logger.Info("analyze complete", "events", lines, "agents", len(agents), "flagged", flagged)
	if flagged > 0 {
		return 1
	}
	return 0
}
