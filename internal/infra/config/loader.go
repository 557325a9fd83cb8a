package config

import (
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mcprelay/internal/domain"
)

// Loader reads the relay configuration from an optional YAML file plus
// MCPRELAY_* environment overrides. The credential is only ever taken from
// the environment or the file, never from flags.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

func newRelayViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mcprelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("toolTimeoutSeconds", domain.DefaultToolTimeoutSeconds)
	v.SetDefault("maxStackBytes", domain.DefaultMaxStackBytes)
	v.SetDefault("observability.listenAddress", "")
}

type rawConfig struct {
	APIKey             string                 `mapstructure:"apiKey"`
	BaseURL            string                 `mapstructure:"baseURL"`
	TargetServerID     string                 `mapstructure:"targetServerId"`
	ToolTimeoutSeconds int                    `mapstructure:"toolTimeoutSeconds"`
	MaxStackBytes      int                    `mapstructure:"maxStackBytes"`
	Observability      rawObservabilityConfig `mapstructure:"observability"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

// Load merges defaults, the config file (when path is non-empty) and
// environment overrides, then validates. All validation problems are reported
// in one CONFIG_INVALID error.
func (l *Loader) Load(path string) (domain.Config, error) {
	const op = "config.Load"

	v := newRelayViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return domain.Config{}, domain.E(domain.CodeConfigInvalid, op, "read config file", err)
		}
	}

	// Viper only honors AutomaticEnv for keys it has seen. Bind the ones
	// that have no default explicitly.
	for _, key := range []string{"apiKey", "baseURL", "targetServerId"} {
		if err := v.BindEnv(key); err != nil {
			return domain.Config{}, domain.E(domain.CodeConfigInvalid, op, "bind environment", err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, domain.E(domain.CodeConfigInvalid, op, "decode config", err)
	}

	cfg := domain.Config{
		APIKey:             strings.TrimSpace(raw.APIKey),
		BaseURL:            strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/"),
		TargetServerID:     strings.TrimSpace(raw.TargetServerID),
		ToolTimeoutSeconds: raw.ToolTimeoutSeconds,
		MaxStackBytes:      raw.MaxStackBytes,
		Observability: domain.ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
		},
	}

	if errs := validate(cfg); len(errs) > 0 {
		return domain.Config{}, domain.E(domain.CodeConfigInvalid, op, strings.Join(errs, "; "), nil)
	}

	if cfg.TargetServerID != "" {
		l.logger.Info("scoped mode configured", zap.String("targetServerId", cfg.TargetServerID))
	}
	return cfg, nil
}

func validate(cfg domain.Config) []string {
	var errs []string
	if cfg.APIKey == "" {
		errs = append(errs, "apiKey is required (set MCPRELAY_APIKEY or the apiKey config key)")
	}
	if cfg.BaseURL == "" {
		errs = append(errs, "baseURL is required")
	} else if parsed, err := url.Parse(cfg.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, "baseURL must be an absolute http(s) URL")
	}
	if cfg.ToolTimeoutSeconds <= 0 {
		errs = append(errs, "toolTimeoutSeconds must be > 0")
	}
	if cfg.MaxStackBytes <= 0 {
		errs = append(errs, "maxStackBytes must be > 0")
	}
	return errs
}
