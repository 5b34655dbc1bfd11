package domain

// IntegrationScope selects which host settings file receives the hook entries.
type IntegrationScope string

const (
	ScopeUser    IntegrationScope = "user"
	ScopeProject IntegrationScope = "project"
)

// IntegrationResult describes install/uninstall outcomes.
type IntegrationResult struct {
	Scope        IntegrationScope
	SettingsFile string
	Command      string
	Changed      []EventKind
	Unchanged    []EventKind
	BackupFile   string
}

// IntegrationStatus captures which events currently route to hookgate.
type IntegrationStatus struct {
	Scope        IntegrationScope
	SettingsFile string
	Exists       bool
	Registered   []EventKind
	Error        string
}
