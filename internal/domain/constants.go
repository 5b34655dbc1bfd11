package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// AuditFilePermissions is the permission for the audit stream (rw-r-----)
	AuditFilePermissions = 0o640
	// RulesFilePermissions is the permission for rule documents (rw-r--r--)
	RulesFilePermissions = 0o644
)

// Evaluation constants
const (
	// DefaultValidatorTimeout is the wall-clock budget of a run action
	DefaultValidatorTimeout = 5 * time.Second
	// DefaultMaxContextBytes caps the aggregated injected context
	DefaultMaxContextBytes = 10000
	// DefaultValidatorFailureThreshold trips a validator's circuit breaker
	DefaultValidatorFailureThreshold = 3
	// ContextDelimiter separates injected fragments
	ContextDelimiter = "\n\n"
	// MaxValidatorOutput bounds captured validator stdout/stderr
	MaxValidatorOutput = 64 * 1024
)

// Audit constants
const (
	// DefaultAuditBufferSize is the audit writer queue length
	DefaultAuditBufferSize = 1024
	// DefaultAuditSendTimeout bounds how long Log waits for room in a full queue
	DefaultAuditSendTimeout = 5 * time.Second
	// MaxAuditFieldBytes bounds command/path text copied into a log entry
	MaxAuditFieldBytes = 2048
	// DefaultAuditQueryLimit is the default number of entries a query returns
	DefaultAuditQueryLimit = 50
)

// Batch constants
const (
	// DefaultBatchWorkers bounds concurrent batch evaluations
	DefaultBatchWorkers = 4
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339Nano
)
