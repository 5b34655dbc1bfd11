package domain

import "fmt"

// FindRule searches for a rule by its name
// Returns the rule and true if found, empty rule and false otherwise
func (rs *RuleSet) FindRule(name string) (Rule, bool) {
	if rs == nil {
		return Rule{}, false
	}
	for _, rule := range rs.Rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

// HasRule checks if a rule with the given name exists in the rule set
func (rs *RuleSet) HasRule(name string) bool {
	_, exists := rs.FindRule(name)
	return exists
}

// RuleNames returns the rule names in declaration order
func (rs *RuleSet) RuleNames() []string {
	if rs == nil {
		return nil
	}
	names := make([]string, 0, len(rs.Rules))
	for _, rule := range rs.Rules {
		names = append(names, rule.Name)
	}
	return names
}

// Validators returns every run action of enabled rules, keyed by rule name
func (rs *RuleSet) Validators() map[string]RunAction {
	validators := make(map[string]RunAction)
	if rs == nil {
		return validators
	}
	for _, rule := range rs.Rules {
		if !rule.Enabled {
			continue
		}
		for _, action := range rule.Actions {
			if run, ok := action.(RunAction); ok {
				validators[rule.Name] = run
			}
		}
	}
	return validators
}

// IsAuditEnabled checks if decisions should be appended to the audit stream
func (c *Config) IsAuditEnabled() bool {
	return !c.Audit.Disabled && c.Audit.LogFile != ""
}

// IsIndexEnabled checks if the SQLite query index should be maintained
func (c *Config) IsIndexEnabled() bool {
	return c.IsAuditEnabled() && c.Audit.IndexEnabled && c.Audit.IndexFile != ""
}

// GetAuditBufferSize returns the audit writer queue length
// Returns the default when not configured
func (c *Config) GetAuditBufferSize() int {
	if c.Audit.BufferSize <= 0 {
		return DefaultAuditBufferSize
	}
	return c.Audit.BufferSize
}

// GetBatchWorkers returns the number of concurrent batch evaluations
func (c *Config) GetBatchWorkers() int {
	if c.Batch.Workers <= 0 {
		return DefaultBatchWorkers
	}
	return c.Batch.Workers
}

// GetLogLevel returns the configured diagnostic log level
func (c *Config) GetLogLevel() string {
	if c.Log.Level == "" {
		return "warn"
	}
	return c.Log.Level
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	if c.Audit.IndexEnabled && c.Audit.IndexFile == "" {
		return fmt.Errorf("audit.index_enabled is set but audit.index is empty")
	}
	if c.Audit.IndexEnabled && c.Audit.LogFile == "" {
		return fmt.Errorf("audit.index_enabled requires audit.log")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console|json, got %s", c.Log.Format)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must be >= 0")
	}
	return nil
}
