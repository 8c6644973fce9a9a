// Package audit provides the JSON-lines audit trail for the trust
// engine: every emitted alert, trust mutation, policy decision, and
// honeypot probe leaves a structured record. The monitor itself keeps
// no durable state; this trail and the ledger are the record.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAlert    EventType = "ALERT"
	EventTrust    EventType = "TRUST"
	EventDecision EventType = "DECISION"
	EventProbe    EventType = "PROBE"
)

// Event represents a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, agentID, action string, metadata map[string]any) error
}

// logger implements Logger, writing structured JSON to a configurable
// Writer, one event per line.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(ctx context.Context, eventType EventType, agentID, action string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Type:      eventType,
		Action:    action,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}
