package domain

import "time"

// ValidatorStatus names the branch taken when interpreting a validator run.
type ValidatorStatus string

const (
	ValidatorPassed        ValidatorStatus = "passed"
	ValidatorFailed        ValidatorStatus = "failed"
	ValidatorTimedOut      ValidatorStatus = "timed_out"
	ValidatorMissing       ValidatorStatus = "missing"
	ValidatorNotExecutable ValidatorStatus = "not_executable"
	ValidatorSpawnError    ValidatorStatus = "spawn_error"
	ValidatorCircuitOpen   ValidatorStatus = "circuit_open"
)

// Blocks reports whether the status resolves to a block.
func (s ValidatorStatus) Blocks() bool {
	return s == ValidatorFailed
}

// InfrastructureFailure reports whether the status is a fail-open branch.
func (s ValidatorStatus) InfrastructureFailure() bool {
	switch s {
	case ValidatorTimedOut, ValidatorMissing, ValidatorNotExecutable, ValidatorSpawnError, ValidatorCircuitOpen:
		return true
	default:
		return false
	}
}

// ValidatorRequest describes one external validator invocation.
type ValidatorRequest struct {
	Rule    string
	Argv    []string
	Timeout time.Duration
	Event   Event
}

// ValidatorResult is the interpreted termination of a validator.
type ValidatorResult struct {
	Status   ValidatorStatus
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	Err      error
}

// Summary converts the result into its audit form.
func (r ValidatorResult) Summary(argv []string) *ValidatorSummary {
	summary := &ValidatorSummary{
		Command:       argv,
		Status:        r.Status,
		ExitCode:      r.ExitCode,
		ElapsedMicros: r.Elapsed.Microseconds(),
	}
	if r.Err != nil {
		summary.Error = r.Err.Error()
	}
	return summary
}
