// Package config loads descent's settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization/gradient"
	"github.com/copyleftdev/descent/internal/optimization/newton"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		// Level defaults to debug in development and info elsewhere.
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Tolerance   float64 `env:"OPT_TOLERANCE" envDefault:"1e-6"`
		Decrease    float64 `env:"OPT_DECREASE" envDefault:"1e-4"`
		WorkerCount int     `env:"OPT_WORKER_COUNT" envDefault:"4"`

		GradientInitialStep   float64 `env:"OPT_GD_INITIAL_STEP" envDefault:"1"`
		GradientMaxStep       float64 `env:"OPT_GD_MAX_STEP" envDefault:"100"`
		GradientShrink        float64 `env:"OPT_GD_SHRINK" envDefault:"0.5"`
		GradientMaxIterations int     `env:"OPT_GD_MAX_ITERATIONS" envDefault:"5000"`

		NewtonRegularizationSeed     float64 `env:"OPT_NEWTON_REG_SEED" envDefault:"1e-6"`
		NewtonRegularizationGrowth   float64 `env:"OPT_NEWTON_REG_GROWTH" envDefault:"10"`
		NewtonRegularizationAttempts int     `env:"OPT_NEWTON_REG_ATTEMPTS" envDefault:"10"`
		NewtonDampingAttempts        int     `env:"OPT_NEWTON_DAMPING_ATTEMPTS" envDefault:"30"`
		NewtonMaxCondition           float64 `env:"OPT_NEWTON_MAX_CONDITION" envDefault:"1e10"`
		NewtonMaxIterations          int     `env:"OPT_NEWTON_MAX_ITERATIONS" envDefault:"200"`
	}
	Results struct {
		Path string `env:"RESULTS_PATH" envDefault:"results.json"`
	}
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Optimization.WorkerCount < 1 {
		return nil, fmt.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", cfg.Optimization.WorkerCount)
	}

	if err := cfg.GradientDescent().Validate(); err != nil {
		return nil, fmt.Errorf("gradient descent settings: %w", err)
	}
	if err := cfg.Newton().Validate(); err != nil {
		return nil, fmt.Errorf("newton settings: %w", err)
	}

	return cfg, nil
}

// GradientDescent returns the configured gradient descent parameters.
func (c *Config) GradientDescent() gradient.Config {
	o := c.Optimization
	return gradient.Config{
		InitialStep:   o.GradientInitialStep,
		MaxStep:       o.GradientMaxStep,
		Shrink:        o.GradientShrink,
		Decrease:      o.Decrease,
		Tolerance:     o.Tolerance,
		MaxIterations: o.GradientMaxIterations,
	}
}

// Newton returns the configured Newton parameters.
func (c *Config) Newton() newton.Config {
	o := c.Optimization
	return newton.Config{
		Tolerance:              o.Tolerance,
		Decrease:               o.Decrease,
		RegularizationSeed:     o.NewtonRegularizationSeed,
		RegularizationGrowth:   o.NewtonRegularizationGrowth,
		MaxCondition:           o.NewtonMaxCondition,
		MaxIterations:          o.NewtonMaxIterations,
		RegularizationAttempts: o.NewtonRegularizationAttempts,
		DampingAttempts:        o.NewtonDampingAttempts,
	}
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() *logging.Config {
	level := c.Logging.Level
	if level == "" {
		level = "info"
		if c.Environment == "development" {
			level = "debug"
		}
	}
	return &logging.Config{
		Level:  level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
