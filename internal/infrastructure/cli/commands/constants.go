package commands

// Audit query defaults
const (
	// DefaultAuditLimit is the number of entries audit subcommands print
	DefaultAuditLimit = 20
	// DefaultSessionLimit covers a whole session in practice
	DefaultSessionLimit = 10000
	// DefaultTopRules is the number of rules audit stats ranks
	DefaultTopRules = 10
)

// Error messages
const (
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrAuditReaderUnavailable   = "audit log unavailable (audit.log is empty)"
	ErrEventKindRequired        = "--event is required unless --input is given"
	ErrRuleSetHasErrors         = "rule set has errors"
	ErrRuleSetUnavailable       = "rule set unavailable, events are allowed without evaluation"
	ErrAuditChainBroken         = "audit chain broken at %d place(s)"
)

// Success messages
const (
	MsgRuleSetValid             = "Rule set valid"
	MsgNoAuditEntries           = "No audit entries recorded yet."
	MsgRulesFileWritten         = "Wrote starter rules to %s\n"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
)
