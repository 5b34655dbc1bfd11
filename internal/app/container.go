package app

import (
	"context"
	"errors"

	"github.com/doeshing/hookgate/internal/application/batch"
	"github.com/doeshing/hookgate/internal/application/doctor"
	"github.com/doeshing/hookgate/internal/application/evaluation"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/audit"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
	"github.com/doeshing/hookgate/internal/infrastructure/integration"
	"github.com/doeshing/hookgate/internal/infrastructure/metrics"
	"github.com/doeshing/hookgate/internal/infrastructure/rules"
	"github.com/doeshing/hookgate/internal/infrastructure/validator"
	"github.com/doeshing/hookgate/internal/pkg/logger"
	"github.com/doeshing/hookgate/internal/ports"
)

// Options holds process-level switches that are not part of runtime config.
type Options struct {
	// Verbose forces debug logging regardless of configured levels.
	Verbose bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config        domain.Config
	ConfigLoader  *config.Loader
	Logger        *logger.ZapLogger
	RuleLoader    *rules.Loader
	Rules         *rules.Store
	Runner        *validator.Runner
	Breakers      *validator.Breakers
	Metrics       *metrics.Metrics
	AuditLog      *audit.Logger
	AuditStore    *audit.JSONLStore
	AuditIndex    *audit.SQLiteIndex
	AuditReader   ports.AuditReader
	Installer     *integration.Installer
	EvalService   *evaluation.Service
	DoctorService *doctor.Service

	verbose bool
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, cfgLoader *config.Loader, opts Options) (*Container, error) {
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.GetLogLevel(), cfg.Log.Format)
	if opts.Verbose {
		log.SetLevel("debug")
	}

	ruleLoader := rules.NewLoader(log.Named("rules"))
	store := rules.NewStore(cfg.RulesFile, ruleLoader, log.Named("rules"))
	current := store.Current()

	breakers := validator.NewBreakers(current.Settings.ValidatorFailureThreshold, log.Named("validator"))
	runner := validator.NewRunner(log.Named("validator"), breakers)
	recorder := metrics.New()

	c := &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		RuleLoader:   ruleLoader,
		Rules:        store,
		Runner:       runner,
		Breakers:     breakers,
		Metrics:      recorder,
		verbose:      opts.Verbose,
	}
	c.applySettings(current)
	store.OnReload(c.applySettings)

	c.buildAudit(cfg, log)

	c.EvalService = &evaluation.Service{
		Rules:    store,
		Executor: &evaluation.Executor{Runner: runner, Metrics: recorder},
		Metrics:  recorder,
		Logger:   log.Named("evaluation"),
	}
	if c.AuditLog != nil {
		c.EvalService.Audit = c.AuditLog
	}

	c.Installer = integration.NewInstaller(log.Named("integration"))

	c.DoctorService = &doctor.Service{
		ConfigProvider: cfgLoader,
		RuleLoader:     ruleLoader,
		Resolver:       runner,
		Integrator:     c.Installer,
	}
	if c.AuditIndex != nil {
		c.DoctorService.Index = c.AuditIndex
	}

	return c, nil
}

func (c *Container) buildAudit(cfg domain.Config, log *logger.ZapLogger) {
	if cfg.Audit.LogFile != "" {
		c.AuditStore = audit.NewJSONLStore(cfg.Audit.LogFile)
		c.AuditReader = c.AuditStore
	}
	if cfg.IsIndexEnabled() {
		index, err := audit.OpenSQLiteIndex(cfg.Audit.IndexFile)
		if err != nil {
			log.Warn("audit index unavailable, continuing with jsonl only", map[string]interface{}{
				"path":  cfg.Audit.IndexFile,
				"error": err.Error(),
			})
		} else {
			c.AuditIndex = index
			c.AuditReader = index
		}
	}
	if !cfg.IsAuditEnabled() {
		return
	}

	var sinks []ports.AuditSink
	if c.AuditStore != nil {
		sinks = append(sinks, c.AuditStore)
	}
	if c.AuditIndex != nil {
		sinks = append(sinks, c.AuditIndex)
	}
	c.AuditLog = audit.NewLogger(log.Named("audit"), cfg.GetAuditBufferSize(), sinks...)
	c.AuditLog.Start()
}

// applySettings pushes rule-document settings into the running components.
func (c *Container) applySettings(rs *domain.RuleSet) {
	if rs == nil {
		return
	}
	if rs.Settings.LogLevel != "" && !c.verbose {
		c.Logger.SetLevel(rs.Settings.LogLevel)
	}
	c.Breakers.SetThreshold(rs.Settings.ValidatorFailureThreshold)
}

// BatchService builds a batch runner over the evaluation service.
func (c *Container) BatchService(workers int, live, trace bool) *batch.Service {
	if workers <= 0 {
		workers = c.Config.GetBatchWorkers()
	}
	return &batch.Service{Evaluator: c.EvalService, Workers: workers, Live: live, Trace: trace}
}

// Close drains the audit queue, writes the metrics textfile and flushes logs.
func (c *Container) Close() error {
	var errs []error
	if c.AuditLog != nil {
		if err := c.AuditLog.Close(); err != nil {
			errs = append(errs, err)
		}
	} else {
		if c.AuditStore != nil {
			errs = append(errs, c.AuditStore.Close())
		}
		if c.AuditIndex != nil {
			errs = append(errs, c.AuditIndex.Close())
		}
	}
	if err := c.Metrics.WriteTextfile(c.Config.Metrics.Textfile); err != nil {
		c.Logger.Warn("metrics textfile not written", map[string]interface{}{"error": err.Error()})
	}
	c.Logger.Sync()
	return errors.Join(errs...)
}
