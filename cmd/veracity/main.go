// Command veracity runs the trust engine from the command line:
// score an evidence bundle, or watch a stream of measurement events
// for deception patterns.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/veracity-labs/veracity/pkg/audit"
	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/observability"
)

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "score":
		return runScoreCmd(args[2:], stdout, stderr)
	case "watch":
		return runWatchCmd(args[2:], stdin, stdout, stderr)
	case "analyze":
		return runAnalyzeCmd(args[2:], stdin, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "veracity - trust and deception detection for autonomous test agents")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  veracity <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  score    Evaluate one evidence bundle (--evidence, --duration, --json)")
	fmt.Fprintln(w, "  watch    Stream measurement events and print alerts (--events)")
	fmt.Fprintln(w, "  analyze  Run batch analysis and update trust profiles (--events, --db)")
	fmt.Fprintln(w, "  help     Show this help")
	fmt.Fprintln(w, "")
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func openAudit(path string) (audit.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return audit.NewLoggerWithWriter(f), func() { _ = f.Close() }, nil
}

// openMetrics builds the OTLP metrics provider. Metrics stay disabled
// (a safe no-op provider) unless an endpoint is configured.
func openMetrics(ctx context.Context, cfg *config.Config) (*observability.Provider, error) {
	oc := observability.DefaultConfig()
	oc.OTLPEndpoint = cfg.OTLPEndpoint
	oc.Enabled = cfg.OTLPEndpoint != ""
	return observability.New(ctx, oc)
}

func writeJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
