package doctor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
)

func TestRunReportsRuleSetValidatorsAndAudit(t *testing.T) {
	dir := t.TempDir()
	cfg := domain.Config{
		RulesFile: filepath.Join(dir, "hooks.yaml"),
		Audit: domain.AuditSettings{
			LogFile:      filepath.Join(dir, "logs", "audit.jsonl"),
			IndexFile:    filepath.Join(dir, "logs", "audit.db"),
			IndexEnabled: true,
		},
	}
	rs := &domain.RuleSet{Rules: []domain.Rule{
		{Name: "lint", Enabled: true, Actions: []domain.Action{domain.RunAction{Source: "./lint.sh", Argv: []string{"./lint.sh"}}}},
		{Name: "tests", Enabled: true, Actions: []domain.Action{domain.RunAction{Source: "make test", Argv: []string{"make", "test"}}}},
	}}
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: cfg},
		RuleLoader:     stubLoader{rs: rs},
		Resolver:       stubResolver{missing: map[string]bool{"./lint.sh": true}},
		Index:          stubCounter{n: 1200},
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	byName := map[string]domain.HealthCheck{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, domain.HealthOK, byName["Rule set"].Status)
	assert.Equal(t, domain.HealthWarn, byName["Validator lint"].Status)
	assert.Contains(t, byName["Validator lint"].Details, "fails open")
	assert.Equal(t, domain.HealthOK, byName["Validator tests"].Status)
	assert.Equal(t, domain.HealthOK, byName["Audit log"].Status)
	assert.Contains(t, byName["Audit index"].Details, "1,200 entries")
	assert.True(t, report.Healthy())
}

func TestRunFlagsRuleErrors(t *testing.T) {
	rs := &domain.RuleSet{
		Rules:  []domain.Rule{{Name: "bad", Enabled: false}},
		Issues: []domain.ConfigIssue{{Severity: domain.SeverityError, Rule: "bad", Message: "invalid command_match"}},
	}
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: domain.Config{RulesFile: "hooks.yaml", Audit: domain.AuditSettings{Disabled: true}}},
		RuleLoader:     stubLoader{rs: rs},
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Healthy())
}

func TestRunFallbackRuleSetWarns(t *testing.T) {
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: domain.Config{RulesFile: "missing.yaml", Audit: domain.AuditSettings{Disabled: true}}},
		RuleLoader:     stubLoader{rs: domain.EmptyRuleSet("missing.yaml")},
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthWarn, report.Checks[1].Status)
	assert.True(t, report.Healthy())
}

func TestRunConfigFailure(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfigProvider{err: errors.New("boom")}}

	report, err := svc.Run(context.Background())
	assert.Error(t, err)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, domain.HealthError, report.Checks[0].Status)
}

type stubConfigProvider struct {
	cfg domain.Config
	err error
}

func (s stubConfigProvider) Load(context.Context) (domain.Config, error) {
	return s.cfg, s.err
}

type stubLoader struct {
	rs *domain.RuleSet
}

func (s stubLoader) Load(string) *domain.RuleSet {
	return s.rs
}

type stubResolver struct {
	missing map[string]bool
}

func (s stubResolver) Resolve(name, _ string) (string, error) {
	if s.missing[name] {
		return "", errors.New(name + " does not exist")
	}
	return "/usr/bin/" + name, nil
}

type stubCounter struct {
	n int
}

func (s stubCounter) Count(context.Context) (int, error) {
	return s.n, nil
}

type stubIntegrator map[domain.IntegrationScope]domain.IntegrationStatus

func (s stubIntegrator) Status(scope domain.IntegrationScope) domain.IntegrationStatus {
	status := s[scope]
	status.Scope = scope
	if status.SettingsFile == "" {
		status.SettingsFile = string(scope) + "/settings.json"
	}
	return status
}

func TestIntegrationCheck(t *testing.T) {
	tests := []struct {
		name       string
		integrator stubIntegrator
		status     domain.HealthStatus
		details    string
	}{
		{
			name: "project wins",
			integrator: stubIntegrator{
				domain.ScopeProject: {Registered: []domain.EventKind{domain.EventPreToolUse, domain.EventPostToolUse}},
				domain.ScopeUser:    {Error: "ignored"},
			},
			status:  domain.HealthOK,
			details: "project/settings.json: PreToolUse, PostToolUse",
		},
		{
			name:       "user fallback",
			integrator: stubIntegrator{domain.ScopeUser: {Registered: []domain.EventKind{domain.EventPreToolUse}}},
			status:     domain.HealthOK,
			details:    "user/settings.json: PreToolUse",
		},
		{
			name:       "missing",
			integrator: stubIntegrator{},
			status:     domain.HealthWarn,
			details:    "not registered in project/settings.json or user/settings.json",
		},
		{
			name:       "unreadable",
			integrator: stubIntegrator{domain.ScopeProject: {Error: "bad json"}},
			status:     domain.HealthError,
			details:    "bad json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := integrationCheck(tt.integrator)
			assert.Equal(t, tt.status, check.Status)
			assert.Contains(t, check.Details, tt.details)
		})
	}
}
