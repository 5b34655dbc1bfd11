// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the evaluation core and external
// adapters (infrastructure). Following the Ports and Adapters (Hexagonal) pattern,
// these interfaces allow the engine to remain independent of specific
// implementations like the YAML loader, the subprocess runner, or the audit store.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., RuleSetProvider, ValidatorRunner)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/hookgate/internal/domain"
)

// ConfigProvider loads the runtime configuration (flags, HOOKGATE_* env, defaults).
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// RuleSetProvider hands out the active, read-only rule set.
// Implementations swap the pointer atomically on reload and never mutate a published set.
type RuleSetProvider interface {
	Current() *domain.RuleSet
}

// RuleSetLoader parses and compiles a rule-set document.
// It never fails: a broken document yields a pass-through rule set carrying issues.
type RuleSetLoader interface {
	Load(path string) *domain.RuleSet
}

// ValidatorRunner runs an external validator and interprets its termination.
// It must never return before the child process has been reaped.
type ValidatorRunner interface {
	Run(ctx context.Context, req domain.ValidatorRequest) domain.ValidatorResult
}

// ExecutableResolver locates a validator executable the way the runner would.
type ExecutableResolver interface {
	Resolve(name, cwd string) (string, error)
}

// AuditSink appends audit records. Append is called from a single writer.
type AuditSink interface {
	Append(entry domain.LogEntry) error
	Close() error
}

// AuditLogger queues audit records for a background writer. Log only waits
// when the queue is full and returns an error when the record was dropped.
type AuditLogger interface {
	Log(entry domain.LogEntry) error
}

// AuditReader serves the "decisions for rule X" and "trace of session Y" queries.
type AuditReader interface {
	Query(ctx context.Context, q domain.AuditQuery) ([]domain.LogEntry, error)
}

// AuditCounter reports how many records an audit index holds.
type AuditCounter interface {
	Count(ctx context.Context) (int, error)
}

// HostIntegrator reports whether the coding agent routes hook events to hookgate.
type HostIntegrator interface {
	Status(scope domain.IntegrationScope) domain.IntegrationStatus
}

// MetricsRecorder observes evaluation outcomes.
type MetricsRecorder interface {
	ObserveDecision(outcome domain.Outcome, elapsed time.Duration)
	ObserveRuleMatch(rule string)
	ObserveValidator(status domain.ValidatorStatus)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stderr, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
