package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/confidence"
	"github.com/veracity-labs/veracity/pkg/evidence"
	"github.com/veracity-labs/veracity/pkg/response"
)

// runScoreCmd evaluates one evidence bundle and prints the policy
// decision as a report or JSON.
func runScoreCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("score", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		evidencePath string
		durationMs   float64
		configPath   string
		jsonOutput   bool
	)
	cmd.StringVar(&evidencePath, "evidence", "", "Path to evidence bundle JSON (REQUIRED, - for stdin)")
	cmd.Float64Var(&durationMs, "duration", 0, "Elapsed test duration in milliseconds (REQUIRED)")
	cmd.StringVar(&configPath, "config", "", "Optional tunables YAML")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if evidencePath == "" || durationMs <= 0 {
		fmt.Fprintln(stderr, "Error: --evidence and a positive --duration are required")
		cmd.Usage()
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var data []byte
	if evidencePath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(evidencePath)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error reading evidence: %v\n", err)
		return 2
	}

	var bundle evidence.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		fmt.Fprintf(stderr, "Error parsing evidence: %v\n", err)
		return 2
	}

	ctx := context.Background()
	metrics, err := openMetrics(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = metrics.Shutdown(ctx) }()

	result := confidence.NewScorerWith(cfg.Confidence).Score(bundle, durationMs, nil)
	resp := response.Decide(result.OverallScore, result.RiskLevel)
	metrics.RecordEvaluation(ctx, result.OverallScore, string(result.RiskLevel))

	if jsonOutput {
		writeJSON(stdout, map[string]any{
			"result":   result,
			"response": resp,
			"cadence":  response.MonitoringCadence(result.OverallScore),
		})
	} else {
		fmt.Fprint(stdout, response.RenderReport(result, resp))
	}

	// The exit code mirrors the decision so scripts can gate on it.
	switch resp.Action.Type {
	case "continue", "monitor":
		return 0
	default:
		return 1
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}
