package tools

import "time"

// ErrorHandling decides what happens after a tool call fails.
type ErrorHandling string

const (
	// ErrorContinue feeds the failure back to the model as an error result.
	ErrorContinue ErrorHandling = "continue"
	// ErrorAbort stops the whole batch on the first failure.
	ErrorAbort ErrorHandling = "abort"
	// ErrorRetry retries with exponential backoff before giving up.
	ErrorRetry ErrorHandling = "retry"
)

type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// Config specifies how tools are offered and executed during a request.
type Config struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	MaxIterations    int           `json:"max_iterations" yaml:"max_iterations"`
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	MaxParallel      int           `json:"max_parallel" yaml:"max_parallel"`
	Policy           Policy        `json:"policy" yaml:"policy"`
	ErrorHandling    ErrorHandling `json:"error_handling" yaml:"error_handling"`
	Retry            RetryConfig   `json:"retry" yaml:"retry"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxIterations:    5,
		ExecutionTimeout: 30 * time.Second,
		MaxParallel:      3,
		ErrorHandling:    ErrorContinue,
		Retry: RetryConfig{
			MaxRetries:    2,
			BackoffBase:   time.Second,
			BackoffFactor: 2.0,
		},
	}
}

func (c Config) WithEnabled(enabled bool) Config {
	c.Enabled = enabled
	return c
}

func (c Config) WithMaxIterations(n int) Config {
	c.MaxIterations = n
	return c
}

func (c Config) WithExecutionTimeout(timeout time.Duration) Config {
	c.ExecutionTimeout = timeout
	return c
}

func (c Config) WithMaxParallel(n int) Config {
	c.MaxParallel = n
	return c
}

func (c Config) WithPolicy(policy Policy) Config {
	c.Policy = policy
	return c
}

func (c Config) WithErrorHandling(handling ErrorHandling) Config {
	c.ErrorHandling = handling
	return c
}

func (c Config) WithRetry(retry RetryConfig) Config {
	c.Retry = retry
	return c
}
