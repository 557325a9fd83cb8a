package domain

import "time"

// Config is the effective relay configuration after defaults, file values and
// environment overrides are merged.
type Config struct {
	APIKey             string              `json:"-"`
	BaseURL            string              `json:"baseURL"`
	TargetServerID     string              `json:"targetServerId,omitempty"`
	ToolTimeoutSeconds int                 `json:"toolTimeoutSeconds"`
	MaxStackBytes      int                 `json:"maxStackBytes"`
	Observability      ObservabilityConfig `json:"observability"`
}

// ObservabilityConfig enables the optional metrics listener when a listen
// address is set.
type ObservabilityConfig struct {
	ListenAddress string `json:"listenAddress,omitempty"`
}

// Scoped reports whether registration is restricted to a single target server.
func (c Config) Scoped() bool {
	return c.TargetServerID != ""
}

// ToolTimeout returns the bounded per-call timeout for tool execution.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
