package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/pkg/filesystem"
	"github.com/doeshing/hookgate/internal/ports"
)

// EnvPrefix namespaces environment overrides (HOOKGATE_AUDIT_LOG, ...).
const EnvPrefix = "HOOKGATE"

// ProjectRulesFile is the per-project rule document, relative to the working directory.
const ProjectRulesFile = ".claude/hookgate.yaml"

// Loader resolves runtime configuration from flags, HOOKGATE_* environment
// variables, an optional ~/.hookgate/config.yaml and defaults, in that order.
type Loader struct {
	v *viper.Viper
	// ConfigPath overrides the config file location; bound to --config.
	ConfigPath string
}

// NewLoader builds a loader. configFile overrides the default config file location.
func NewLoader(configFile string) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{v: v, ConfigPath: configFile}
}

// DefaultConfig returns the runtime settings used when nothing overrides them.
func DefaultConfig() domain.Config {
	logs := filepath.Join(filesystem.StateDir(), "logs")
	return domain.Config{
		FailOpen: true,
		Audit: domain.AuditSettings{
			LogFile:    filepath.Join(logs, "audit.jsonl"),
			IndexFile:  filepath.Join(logs, "audit.db"),
			BufferSize: domain.DefaultAuditBufferSize,
		},
		Log:   domain.LogSettings{Level: "warn", Format: "console"},
		Batch: domain.BatchSettings{Workers: domain.DefaultBatchWorkers},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("rules", d.RulesFile)
	v.SetDefault("fail_open", d.FailOpen)
	v.SetDefault("audit.log", d.Audit.LogFile)
	v.SetDefault("audit.index", d.Audit.IndexFile)
	v.SetDefault("audit.index_enabled", d.Audit.IndexEnabled)
	v.SetDefault("audit.buffer", d.Audit.BufferSize)
	v.SetDefault("audit.disabled", d.Audit.Disabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("batch.workers", d.Batch.Workers)
}

// ConfigFileUsed returns the config file read by the last Load, or "".
func (l *Loader) ConfigFileUsed() string {
	path := l.v.ConfigFileUsed()
	if !filesystem.Exists(path) {
		return ""
	}
	return path
}

// BindFlag lets a command-line flag override key.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load implements ports.ConfigProvider.
func (l *Loader) Load(context.Context) (domain.Config, error) {
	if err := l.readConfigFile(); err != nil {
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("%w: decode runtime config: %v", domain.ErrConfiguration, err)
	}

	cfg.RulesFile = filesystem.ExpandPath(cfg.RulesFile)
	if cfg.RulesFile == "" {
		cfg.RulesFile = DefaultRulesPath()
	}
	cfg.Audit.LogFile = filesystem.ExpandPath(cfg.Audit.LogFile)
	cfg.Audit.IndexFile = filesystem.ExpandPath(cfg.Audit.IndexFile)
	cfg.Metrics.Textfile = filesystem.ExpandPath(cfg.Metrics.Textfile)

	if err := cfg.ValidateConsistency(); err != nil {
		return domain.Config{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

// ConfigFile returns the config file location: the explicit path, then
// HOOKGATE_CONFIG, then ~/.hookgate/config.yaml.
func (l *Loader) ConfigFile() string {
	path := l.ConfigPath
	if path == "" {
		if custom := os.Getenv(EnvPrefix + "_CONFIG"); custom != "" {
			path = custom
		} else {
			path = filepath.Join(filesystem.StateDir(), "config.yaml")
		}
	}
	return filesystem.ExpandPath(path)
}

func (l *Loader) readConfigFile() error {
	path := l.ConfigFile()
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
	}
	return nil
}

// DefaultRulesPath prefers the project document and falls back to the user one.
func DefaultRulesPath() string {
	if filesystem.Exists(ProjectRulesFile) {
		if abs, err := filepath.Abs(ProjectRulesFile); err == nil {
			return abs
		}
		return ProjectRulesFile
	}
	return filepath.Join(filesystem.StateDir(), "hooks.yaml")
}

var _ ports.ConfigProvider = (*Loader)(nil)
