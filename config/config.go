// Package config loads the runtime's static configuration: LLM selection
// defaults, tool loop limits, and the default action retry policy. A Config
// is read-only once Load returns it; nothing in this package mutates a
// Config after decode.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentrun/core/action"
)

// Config is the decoded, defaulted configuration tree. Fields are
// unexported; callers read it through the accessor methods below so the
// value stays read-only from outside the package.
type Config struct {
	raw rawConfig
}

type rawConfig struct {
	LLM      llmConfig      `yaml:"llm"`
	ToolLoop toolLoopConfig `yaml:"toolloop"`
	Action   actionConfig   `yaml:"action"`
}

type llmConfig struct {
	DefaultModel string            `yaml:"defaultModel"`
	Roles        map[string]string `yaml:"roles"`
}

type toolLoopConfig struct {
	MaxIterations    *int  `yaml:"maxIterations"`
	UseEmbabelDriver *bool `yaml:"useEmbabelDriver"`
}

type actionConfig struct {
	Retry retryConfig `yaml:"retry"`
}

type retryConfig struct {
	Default defaultRetryConfig `yaml:"default"`
}

type defaultRetryConfig struct {
	MaxAttempts        *int     `yaml:"maxAttempts"`
	BackoffMillis      *int64   `yaml:"backoffMillis"`
	BackoffMultiplier  *float64 `yaml:"backoffMultiplier"`
	BackoffMaxInterval *int64   `yaml:"backoffMaxInterval"`
	Idempotent         *bool    `yaml:"idempotent"`
}

const (
	defaultMaxIterations           = 20
	defaultUseEmbabelDriver        = true
	defaultRetryMaxAttempts        = 5
	defaultRetryBackoffMillis      = 10_000
	defaultRetryBackoffMultiplier  = 5.0
	defaultRetryBackoffMaxInterval = 60_000
	defaultRetryIdempotent         = false
)

// Load reads, expands, and decodes the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, expanding ${VAR} / ${VAR:-default} / $VAR
// environment references before unmarshaling, and applies the defaults
// enumerated alongside each key.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	return &Config{raw: raw}, nil
}

// DefaultModel is llm.defaultModel.
func (c *Config) DefaultModel() string {
	return c.raw.LLM.DefaultModel
}

// RoleModel resolves llm.roles.<role>, returning ok=false if the role has no
// configured model.
func (c *Config) RoleModel(role string) (string, bool) {
	model, ok := c.raw.LLM.Roles[role]
	return model, ok
}

// MaxIterations is toolloop.maxIterations, defaulting to 20.
func (c *Config) MaxIterations() int {
	if c.raw.ToolLoop.MaxIterations != nil {
		return *c.raw.ToolLoop.MaxIterations
	}
	return defaultMaxIterations
}

// UseEmbabelDriver is toolloop.useEmbabelDriver, defaulting to true.
func (c *Config) UseEmbabelDriver() bool {
	if c.raw.ToolLoop.UseEmbabelDriver != nil {
		return *c.raw.ToolLoop.UseEmbabelDriver
	}
	return defaultUseEmbabelDriver
}

// DefaultRetryPolicy builds an action.RetryPolicy from
// action.retry.default.*, defaulting to action.Default's shape
// (maxAttempts=5, 10s initial backoff, ×5 multiplier, 60s cap).
func (c *Config) DefaultRetryPolicy() action.RetryPolicy {
	d := c.raw.Action.Retry.Default

	maxAttempts := defaultRetryMaxAttempts
	if d.MaxAttempts != nil {
		maxAttempts = *d.MaxAttempts
	}
	backoffMillis := int64(defaultRetryBackoffMillis)
	if d.BackoffMillis != nil {
		backoffMillis = *d.BackoffMillis
	}
	multiplier := defaultRetryBackoffMultiplier
	if d.BackoffMultiplier != nil {
		multiplier = *d.BackoffMultiplier
	}
	maxIntervalMillis := int64(defaultRetryBackoffMaxInterval)
	if d.BackoffMaxInterval != nil {
		maxIntervalMillis = *d.BackoffMaxInterval
	}

	return action.RetryPolicy{
		MaxAttempts:        maxAttempts,
		InitialInterval:    time.Duration(backoffMillis) * time.Millisecond,
		BackoffCoefficient: multiplier,
		MaxInterval:        time.Duration(maxIntervalMillis) * time.Millisecond,
	}
}

// DefaultRetryIdempotent is action.retry.default.idempotent, defaulting to
// false: whether the default-policy action may be safely retried after a
// failure whose side effects are unknown to have completed.
func (c *Config) DefaultRetryIdempotent() bool {
	d := c.raw.Action.Retry.Default
	if d.Idempotent != nil {
		return *d.Idempotent
	}
	return defaultRetryIdempotent
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR}, ${VAR:-default}, and $VAR references with
// the corresponding environment variable (or default), so a config file can
// externalize secrets like API keys without embedding them in YAML.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx != -1 {
				name, def := inner[:idx], inner[idx+2:]
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}
