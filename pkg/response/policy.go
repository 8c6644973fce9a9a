// Package response maps a confidence evaluation to a graduated
// enforcement decision. The policy is a pure lookup over five fixed
// confidence bands; nothing here is derived or learned, so callers can
// rely on the exact band boundaries.
package response

import "github.com/veracity-labs/veracity/pkg/evidence"

// Action is the enforcement step a band prescribes.
type Action struct {
	Type         string   `json:"type"`
	Severity     string   `json:"severity"`
	Requirements []string `json:"requirements"`
	NextSteps    []string `json:"next_steps"`
}

// GraduatedResponse is the full policy decision for one evaluation.
type GraduatedResponse struct {
	Confidence     float64            `json:"confidence"`
	RiskLevel      evidence.RiskLevel `json:"risk_level"`
	Action         Action             `json:"action"`
	Reasoning      string             `json:"reasoning"`
	EscalationPath []string           `json:"escalation_path"`
}

// band is one row of the static policy table.
type band struct {
	floor      float64
	cadence    string
	action     Action
	reasoning  string
	escalation []string
}

// The five bands, highest floor first. Decide walks this table top
// down and takes the first band whose floor the confidence clears.
var bands = []band{
	{
		floor:   0.9,
		cadence: "periodic",
		action: Action{
			Type:         "continue",
			Severity:     "low",
			Requirements: []string{"none"},
			NextSteps:    []string{"proceed with normal operation"},
		},
		reasoning:  "High confidence in evidence authenticity; no intervention required.",
		escalation: []string{"periodic automated review"},
	},
	{
		floor:   0.7,
		cadence: "regular",
		action: Action{
			Type:         "monitor",
			Severity:     "low",
			Requirements: []string{"enhanced logging enabled"},
			NextSteps:    []string{"continue with increased observation", "review evidence on next completion"},
		},
		reasoning:  "Good confidence with minor uncertainty; continue under routine monitoring.",
		escalation: []string{"automated monitoring", "reviewer notification on repeat"},
	},
	{
		floor:   0.5,
		cadence: "frequent",
		action: Action{
			Type:         "verify",
			Severity:     "medium",
			Requirements: []string{"independent verification of reported results", "additional evidence collection"},
			NextSteps:    []string{"re-run a sample of completed items", "cross-check measurements against a second agent"},
		},
		reasoning:  "Moderate confidence; results must be independently verified before acceptance.",
		escalation: []string{"verification queue", "reviewer sign-off", "trust review on failure"},
	},
	{
		floor:   0.3,
		cadence: "continuous",
		action: Action{
			Type:         "quarantine",
			Severity:     "high",
			Requirements: []string{"suspend autonomous operation", "manual review of all submitted evidence"},
			NextSteps:    []string{"hold all pending results", "schedule supervised re-execution"},
		},
		reasoning:  "Low confidence with substantial deception risk; agent output is quarantined pending review.",
		escalation: []string{"operator alert", "manual evidence audit", "trust score review"},
	},
	{
		floor:   0, // catch-all
		cadence: "immediate",
		action: Action{
			Type:         "reject",
			Severity:     "critical",
			Requirements: []string{"reject all submitted results", "revoke autonomous authorization"},
			NextSteps:    []string{"discard reported results", "open incident for the agent", "require full re-execution under supervision"},
		},
		reasoning:  "Critical deception indicators; evidence cannot be trusted and is rejected outright.",
		escalation: []string{"immediate operator page", "incident response", "agent deauthorization"},
	},
}

func bandFor(confidence float64) band {
	for _, b := range bands[:len(bands)-1] {
		if confidence >= b.floor {
			return b
		}
	}
	return bands[len(bands)-1]
}

// Decide maps a confidence score and risk level to the enforcement
// decision for that band. Pure function, safe for concurrent use.
func Decide(confidence float64, riskLevel evidence.RiskLevel) *GraduatedResponse {
	b := bandFor(confidence)
	return &GraduatedResponse{
		Confidence:     confidence,
		RiskLevel:      riskLevel,
		Action:         b.action,
		Reasoning:      b.reasoning,
		EscalationPath: b.escalation,
	}
}

// MonitoringCadence maps a confidence score to how often the agent
// should be re-checked, on the same band boundaries as Decide.
func MonitoringCadence(confidence float64) string {
	return bandFor(confidence).cadence
}
