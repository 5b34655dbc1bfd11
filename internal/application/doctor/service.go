package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/hookgate/internal/application/lint"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	RuleLoader     ports.RuleSetLoader
	Resolver       ports.ExecutableResolver
	Index          ports.AuditCounter
	Integrator     ports.HostIntegrator
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Runtime config", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Runtime config", fmt.Sprintf("log level %s, fail_open=%t", cfg.GetLogLevel(), cfg.FailOpen)))

	var rs *domain.RuleSet
	if s.RuleLoader != nil {
		rs = s.RuleLoader.Load(cfg.RulesFile)
		checks = append(checks, ruleSetCheck(cfg.RulesFile, rs))
	} else {
		checks = append(checks, warn("Rule set", "rule loader not initialized"))
	}

	if rs != nil && s.Resolver != nil {
		checks = append(checks, s.validatorChecks(rs)...)
	}

	if cfg.IsAuditEnabled() {
		checks = append(checks, auditCheck(cfg.Audit.LogFile))
	} else {
		checks = append(checks, warn("Audit log", "disabled"))
	}

	if cfg.IsIndexEnabled() {
		if s.Index == nil {
			checks = append(checks, warn("Audit index", "index enabled but unavailable"))
		} else if n, err := s.Index.Count(ctx); err != nil {
			checks = append(checks, fail("Audit index", err.Error()))
		} else {
			checks = append(checks, ok("Audit index", fmt.Sprintf("%s (%s entries)", cfg.Audit.IndexFile, humanize.Comma(int64(n)))))
		}
	}

	if s.Integrator != nil {
		checks = append(checks, integrationCheck(s.Integrator))
	}

	return domain.HealthReport{Checks: checks}, nil
}

// integrationCheck looks at the project settings first, then the user ones.
func integrationCheck(integrator ports.HostIntegrator) domain.HealthCheck {
	var seen []string
	for _, scope := range []domain.IntegrationScope{domain.ScopeProject, domain.ScopeUser} {
		status := integrator.Status(scope)
		if status.Error != "" {
			return fail("Host hooks", fmt.Sprintf("%s: %s", status.SettingsFile, status.Error))
		}
		if len(status.Registered) > 0 {
			names := make([]string, len(status.Registered))
			for i, event := range status.Registered {
				names[i] = string(event)
			}
			return ok("Host hooks", fmt.Sprintf("%s: %s", status.SettingsFile, strings.Join(names, ", ")))
		}
		seen = append(seen, status.SettingsFile)
	}
	return warn("Host hooks", fmt.Sprintf("not registered in %s (run 'hookgate install')", strings.Join(seen, " or ")))
}

func ruleSetCheck(path string, rs *domain.RuleSet) domain.HealthCheck {
	errors, warnings := 0, len(lint.Check(rs))
	for _, issue := range rs.Issues {
		if issue.Severity == domain.SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	switch {
	case rs.Fallback:
		return warn("Rule set", fmt.Sprintf("%s unavailable, allowing every event (%d issue(s))", path, len(rs.Issues)))
	case errors > 0:
		return fail("Rule set", fmt.Sprintf("%s: %d of %d rule(s) enabled, %d error(s), %d warning(s)", path, rs.EnabledCount(), len(rs.Rules), errors, warnings))
	case warnings > 0:
		return warn("Rule set", fmt.Sprintf("%s: %d rule(s) enabled, %d warning(s)", path, rs.EnabledCount(), warnings))
	default:
		return ok("Rule set", fmt.Sprintf("%s: %d rule(s) enabled", path, rs.EnabledCount()))
	}
}

func (s *Service) validatorChecks(rs *domain.RuleSet) []domain.HealthCheck {
	validators := rs.Validators()
	names := make([]string, 0, len(validators))
	for name := range validators {
		names = append(names, name)
	}
	sort.Strings(names)

	cwd, _ := os.Getwd()
	checks := make([]domain.HealthCheck, 0, len(names))
	for _, name := range names {
		action := validators[name]
		label := "Validator " + name
		if len(action.Argv) == 0 {
			checks = append(checks, fail(label, "empty command"))
			continue
		}
		path, err := s.Resolver.Resolve(action.Argv[0], cwd)
		if err != nil {
			checks = append(checks, warn(label, err.Error()+" (fails open)"))
			continue
		}
		checks = append(checks, ok(label, path))
	}
	return checks
}

func auditCheck(path string) domain.HealthCheck {
	if path == "" {
		return fail("Audit log", "no path configured")
	}
	info, err := os.Stat(path)
	if err == nil {
		return ok("Audit log", fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size()))))
	}
	if !os.IsNotExist(err) {
		return fail("Audit log", err.Error())
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return fail("Audit log", fmt.Sprintf("cannot create %s: %v", dir, err))
	}
	return ok("Audit log", fmt.Sprintf("%s (not written yet)", path))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
