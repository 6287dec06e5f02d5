package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete TaskMesh configuration.
type Config struct {
	Router   RouterConfig   `yaml:"router"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// RouterConfig tunes the intent router.
type RouterConfig struct {
	// ConfidenceThreshold is the minimum post-boost confidence required to
	// keep a classified target; below it the fallback agent type is used.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// FallbackAgentType receives requests routing cannot confidently resolve.
	FallbackAgentType string `yaml:"fallback_agent_type"`
	// MaxContextHistory bounds the per-conversation turn window.
	MaxContextHistory int `yaml:"max_context_history"`
	// MaxPromptTurns limits how many recent turns are embedded in the
	// classification prompt.
	MaxPromptTurns int `yaml:"max_prompt_turns"`
}

// RetryConfig controls handler invocation retries.
type RetryConfig struct {
	// MaxRetries is the total number of attempts made for a failing handler.
	MaxRetries int `yaml:"max_retries"`
	// Backoff is multiplied by the attempt number for linear backoff between
	// attempts.
	Backoff time.Duration `yaml:"backoff"`
}

// UnmarshalYAML merges present keys over the existing values and accepts
// durations in time.ParseDuration form ("200ms", "1s").
func (r *RetryConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MaxRetries *int    `yaml:"max_retries"`
		Backoff    *string `yaml:"backoff"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxRetries != nil {
		r.MaxRetries = *raw.MaxRetries
	}
	if raw.Backoff != nil {
		d, err := time.ParseDuration(*raw.Backoff)
		if err != nil {
			return fmt.Errorf("invalid retry.backoff: %w", err)
		}
		r.Backoff = d
	}
	return nil
}

// WorkflowConfig tunes the execution state machine.
type WorkflowConfig struct {
	// MaxSteps bounds the number of state transitions per run.
	MaxSteps int `yaml:"max_steps"`
	// ExecutionTimeout bounds the whole Execute call.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	// Retry applies to each handler invocation.
	Retry RetryConfig `yaml:"retry"`
	// StreamBufferSize sets channel buffering for streamed state updates.
	StreamBufferSize int `yaml:"stream_buffer_size"`
}

// UnmarshalYAML merges present keys over the existing values and accepts the
// timeout in time.ParseDuration form.
func (w *WorkflowConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		MaxSteps         *int         `yaml:"max_steps"`
		ExecutionTimeout *string      `yaml:"execution_timeout"`
		Retry            *RetryConfig `yaml:"retry"`
		StreamBufferSize *int         `yaml:"stream_buffer_size"`
	}{Retry: &w.Retry}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxSteps != nil {
		w.MaxSteps = *raw.MaxSteps
	}
	if raw.ExecutionTimeout != nil {
		d, err := time.ParseDuration(*raw.ExecutionTimeout)
		if err != nil {
			return fmt.Errorf("invalid workflow.execution_timeout: %w", err)
		}
		w.ExecutionTimeout = d
	}
	if raw.StreamBufferSize != nil {
		w.StreamBufferSize = *raw.StreamBufferSize
	}
	return nil
}

// RedisConfig configures the optional Redis conversation store.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	KeyTTL   time.Duration `yaml:"key_ttl"`
}

// UnmarshalYAML merges present keys over the existing values and accepts the
// TTL in time.ParseDuration form.
func (r *RedisConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Addr     *string `yaml:"addr"`
		Password *string `yaml:"password"`
		DB       *int    `yaml:"db"`
		KeyTTL   *string `yaml:"key_ttl"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Addr != nil {
		r.Addr = *raw.Addr
	}
	if raw.Password != nil {
		r.Password = *raw.Password
	}
	if raw.DB != nil {
		r.DB = *raw.DB
	}
	if raw.KeyTTL != nil {
		d, err := time.ParseDuration(*raw.KeyTTL)
		if err != nil {
			return fmt.Errorf("invalid redis.key_ttl: %w", err)
		}
		r.KeyTTL = d
	}
	return nil
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Router: RouterConfig{
			ConfidenceThreshold: 0.6,
			FallbackAgentType:   "assistant",
			MaxContextHistory:   20,
			MaxPromptTurns:      3,
		},
		Workflow: WorkflowConfig{
			MaxSteps:         10,
			ExecutionTimeout: 60 * time.Second,
			Retry:            RetryConfig{MaxRetries: 3, Backoff: 200 * time.Millisecond},
			StreamBufferSize: 16,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			KeyTTL: 0,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML file over the defaults, then applies TASKMESH_* env
// overrides. A missing path returns the defaults (plus env) unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers deployment-level environment overrides on top of file
// values. Only settings that commonly differ per environment are exposed.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TASKMESH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TASKMESH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TASKMESH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TASKMESH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate rejects configurations that cannot guarantee forward progress.
func (c *Config) Validate() error {
	if c.Router.ConfidenceThreshold < 0 || c.Router.ConfidenceThreshold > 1 {
		return fmt.Errorf("router.confidence_threshold must be within [0,1], got %v", c.Router.ConfidenceThreshold)
	}
	if c.Router.FallbackAgentType == "" {
		return fmt.Errorf("router.fallback_agent_type must not be empty")
	}
	if c.Router.MaxContextHistory <= 0 {
		return fmt.Errorf("router.max_context_history must be positive, got %d", c.Router.MaxContextHistory)
	}
	if c.Workflow.MaxSteps <= 0 {
		return fmt.Errorf("workflow.max_steps must be positive, got %d", c.Workflow.MaxSteps)
	}
	if c.Workflow.ExecutionTimeout <= 0 {
		return fmt.Errorf("workflow.execution_timeout must be positive, got %v", c.Workflow.ExecutionTimeout)
	}
	if c.Workflow.Retry.MaxRetries < 1 {
		return fmt.Errorf("workflow.retry.max_retries must be at least 1, got %d", c.Workflow.Retry.MaxRetries)
	}
	return nil
}
