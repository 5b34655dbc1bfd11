package domain

import "time"

// Config holds the process-level runtime settings (flags, HOOKGATE_* env).
type Config struct {
	RulesFile string          `mapstructure:"rules" yaml:"rules"`
	FailOpen  bool            `mapstructure:"fail_open" yaml:"fail_open"`
	Audit     AuditSettings   `mapstructure:"audit" yaml:"audit"`
	Log       LogSettings     `mapstructure:"log" yaml:"log"`
	Metrics   MetricsSettings `mapstructure:"metrics" yaml:"metrics"`
	Batch     BatchSettings   `mapstructure:"batch" yaml:"batch"`
}

// AuditSettings configures the audit stream and its query index.
type AuditSettings struct {
	LogFile      string `mapstructure:"log" yaml:"log"`
	IndexFile    string `mapstructure:"index" yaml:"index"`
	IndexEnabled bool   `mapstructure:"index_enabled" yaml:"index_enabled"`
	BufferSize   int    `mapstructure:"buffer" yaml:"buffer"`
	Disabled     bool   `mapstructure:"disabled" yaml:"disabled"`
}

// LogSettings configures the diagnostic logger (stderr).
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsSettings configures the optional prometheus textfile.
type MetricsSettings struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// BatchSettings bounds concurrent batch evaluation.
type BatchSettings struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// Settings are the global knobs carried by the rule-set document.
type Settings struct {
	LogLevel                  string
	FailOpen                  bool
	MaxContextBytes           int
	ValidatorTimeout          time.Duration
	ValidatorFailureThreshold int
}

// DefaultSettings returns the settings used when the document omits them.
func DefaultSettings() Settings {
	return Settings{
		FailOpen:                  true,
		MaxContextBytes:           DefaultMaxContextBytes,
		ValidatorTimeout:          DefaultValidatorTimeout,
		ValidatorFailureThreshold: DefaultValidatorFailureThreshold,
	}
}

// TimeoutFor returns the validator budget for a run action.
func (s Settings) TimeoutFor(action RunAction) time.Duration {
	if action.Timeout > 0 {
		return action.Timeout
	}
	if s.ValidatorTimeout > 0 {
		return s.ValidatorTimeout
	}
	return DefaultValidatorTimeout
}

// ContextLimit returns the maximum injected context size in bytes.
func (s Settings) ContextLimit() int {
	if s.MaxContextBytes <= 0 {
		return DefaultMaxContextBytes
	}
	return s.MaxContextBytes
}
