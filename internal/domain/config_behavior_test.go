package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/hookgate/internal/domain"
)

// TestRuleSet_FindRule tests looking up rules by name
func TestRuleSet_FindRule(t *testing.T) {
	rs := &domain.RuleSet{
		Rules: []domain.Rule{
			{Name: "block-force-push", Enabled: true},
			{Name: "python-style", Enabled: false},
		},
	}

	tests := []struct {
		name      string
		ruleName  string
		wantFound bool
	}{
		{name: "finds enabled rule", ruleName: "block-force-push", wantFound: true},
		{name: "finds disabled rule", ruleName: "python-style", wantFound: true},
		{name: "missing rule", ruleName: "nope", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, found := rs.FindRule(tt.ruleName)
			if found != tt.wantFound {
				t.Fatalf("FindRule(%q) found = %v, want %v", tt.ruleName, found, tt.wantFound)
			}
			if found && rule.Name != tt.ruleName {
				t.Errorf("got rule %s, want %s", rule.Name, tt.ruleName)
			}
		})
	}

	if rs.EnabledCount() != 1 {
		t.Errorf("expected 1 enabled rule, got %d", rs.EnabledCount())
	}
}

// TestRuleSet_NilSafe tests that a nil rule set behaves as empty
func TestRuleSet_NilSafe(t *testing.T) {
	var rs *domain.RuleSet

	if rs.HasRule("x") {
		t.Error("nil rule set should not contain rules")
	}
	if rs.EnabledCount() != 0 {
		t.Error("nil rule set should have no enabled rules")
	}
	if !rs.Provenance().Fallback {
		t.Error("nil rule set provenance should be marked fallback")
	}
}

// TestRuleSet_Validators tests collecting run actions of enabled rules
func TestRuleSet_Validators(t *testing.T) {
	rs := &domain.RuleSet{
		Rules: []domain.Rule{
			{Name: "lint", Enabled: true, Actions: []domain.Action{domain.RunAction{Source: "./lint.sh", Argv: []string{"./lint.sh"}}}},
			{Name: "off", Enabled: false, Actions: []domain.Action{domain.RunAction{Source: "./off.sh", Argv: []string{"./off.sh"}}}},
			{Name: "inject", Enabled: true, Actions: []domain.Action{domain.InjectAction{Text: []string{"hi"}}}},
		},
	}

	validators := rs.Validators()
	if len(validators) != 1 {
		t.Fatalf("expected 1 validator, got %d", len(validators))
	}
	if validators["lint"].Source != "./lint.sh" {
		t.Errorf("unexpected validator %+v", validators["lint"])
	}
}

// TestSettings_TimeoutFor tests validator budget resolution
func TestSettings_TimeoutFor(t *testing.T) {
	settings := domain.Settings{ValidatorTimeout: 2 * time.Second}

	if got := settings.TimeoutFor(domain.RunAction{Timeout: time.Second}); got != time.Second {
		t.Errorf("per-rule timeout should win, got %s", got)
	}
	if got := settings.TimeoutFor(domain.RunAction{}); got != 2*time.Second {
		t.Errorf("global timeout should apply, got %s", got)
	}
	if got := (domain.Settings{}).TimeoutFor(domain.RunAction{}); got != domain.DefaultValidatorTimeout {
		t.Errorf("default timeout should apply, got %s", got)
	}
}

// TestConfig_ValidateConsistency tests runtime configuration validation
func TestConfig_ValidateConsistency(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.Config
		wantError bool
	}{
		{
			name: "valid configuration",
			config: domain.Config{
				Audit: domain.AuditSettings{LogFile: "/tmp/audit.jsonl", IndexFile: "/tmp/audit.db", IndexEnabled: true},
				Log:   domain.LogSettings{Format: "json"},
			},
		},
		{
			name:      "invalid: index enabled without path",
			config:    domain.Config{Audit: domain.AuditSettings{LogFile: "/tmp/a.jsonl", IndexEnabled: true}},
			wantError: true,
		},
		{
			name:      "invalid: unknown log format",
			config:    domain.Config{Log: domain.LogSettings{Format: "xml"}},
			wantError: true,
		},
		{
			name:      "invalid: negative workers",
			config:    domain.Config{Batch: domain.BatchSettings{Workers: -1}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateConsistency()

			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

// TestParseEventKind tests accepted spellings of event kinds
func TestParseEventKind(t *testing.T) {
	tests := []struct {
		input string
		want  domain.EventKind
	}{
		{"PreToolUse", domain.EventPreToolUse},
		{"pre-tool-use", domain.EventPreToolUse},
		{"post_tool_use", domain.EventPostToolUse},
		{"permission-request", domain.EventPermissionRequest},
		{"USERPROMPTSUBMIT", domain.EventUserPromptSubmit},
		{"session-start", domain.EventSessionStart},
		{"SessionEnd", domain.EventSessionEnd},
		{"pre-compact", domain.EventPreCompact},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := domain.ParseEventKind(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := domain.ParseEventKind("Stop"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

// TestDecision_Outcome tests decision classification
func TestDecision_Outcome(t *testing.T) {
	if got := domain.Allow().Outcome(); got != domain.OutcomeAllow {
		t.Errorf("Allow() outcome = %s", got)
	}
	if got := (domain.Decision{Continue: true, Context: "x"}).Outcome(); got != domain.OutcomeInject {
		t.Errorf("inject outcome = %s", got)
	}
	if got := (domain.Decision{Continue: false, Context: "x"}).Outcome(); got != domain.OutcomeBlock {
		t.Errorf("block outcome = %s", got)
	}
}
