package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/config"
	"github.com/copyleftdev/descent/internal/logging"
)

// app carries the state built by the root command for its subcommands.
type app struct {
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "descent",
		Short: "Gradient descent and regularized Newton minimization",
		Long: `descent minimizes smooth objectives with Armijo gradient descent and a
regularized, damped Newton method, and records runs for later comparison.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (json, text)")

	rootCmd.AddCommand(
		newRunCmd(a),
		newAnalyzeCmd(a),
		newMinimizeCmd(a),
	)
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	logCfg := cfg.LoggingConfig()
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	logCfg.Format = a.logFormat
	logCfg.Output = "stderr"

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logging.NewZapLogger(logger.WithField("service", "descent"))
	return nil
}

// parsePoint parses a comma separated coordinate list such as "2,-3".
func parsePoint(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	x := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", s, err)
		}
		x[i] = v
	}
	return x, nil
}

// joinPoint is the inverse of parsePoint.
func joinPoint(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func formatPoint(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
