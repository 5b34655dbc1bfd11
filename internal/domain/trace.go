package domain

import "time"

// RuleEvaluation is a debug-only trace entry for one considered rule.
type RuleEvaluation struct {
	Rule    string        `json:"rule"`
	Matched bool          `json:"matched"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Pattern string        `json:"pattern"`
	Input   string        `json:"input"`
	Detail  string        `json:"detail"`
}
