// Package config resolves runtime configuration for the churnpipe CLI
// from flags and environment variables (prefix CHURNPIPE_).
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// Conventional trained-artifact locations, relative to the working
// directory, matching the training project's layout.
const (
	DefaultModelPath    = "models/trained/churn_model.json"
	DefaultEncodersPath = "models/encoders/label_encoders.json"
)

// Config is the resolved runtime configuration.
type Config struct {
	CustomerData string
	Batch        bool
	Threshold    float64
	Output       string
	ModelPath    string
	EncodersPath string
	Check        bool
	LogLevel     string
	ScoreTimeout time.Duration
}

// Load parses flags and environment into a Config. args excludes the
// program name.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("churnpipe", pflag.ContinueOnError)
	fs.String("customer-data", "", "path to the customer data file (CSV, XLSX, JSON)")
	fs.Bool("batch", false, "batch mode for multiple customers")
	fs.Float64("threshold", 0.4, "decision threshold for churn")
	fs.String("output", "", "output path for the results, - for stdout (default: timestamped file)")
	fs.String("model-path", DefaultModelPath, "path to the trained model artifact")
	fs.String("encoders-path", DefaultEncodersPath, "path to the fitted encoders artifact")
	fs.Bool("check", false, "verify artifacts and exit without predicting")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Duration("score-timeout", 0, "per-record scoring timeout (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, pkgerrors.NewUsageError("config.Load", err.Error())
	}

	v := viper.New()
	v.SetEnvPrefix("CHURNPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, pkgerrors.Wrap(err, "binding flags")
	}

	cfg := &Config{
		CustomerData: v.GetString("customer-data"),
		Batch:        v.GetBool("batch"),
		Threshold:    v.GetFloat64("threshold"),
		Output:       v.GetString("output"),
		ModelPath:    filepath.Clean(v.GetString("model-path")),
		EncodersPath: filepath.Clean(v.GetString("encoders-path")),
		Check:        v.GetBool("check"),
		LogLevel:     v.GetString("log-level"),
		ScoreTimeout: v.GetDuration("score-timeout"),
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, pkgerrors.NewValidationError("threshold", "must be in [0,1]", cfg.Threshold)
	}
	if !cfg.Check && cfg.CustomerData == "" {
		return nil, pkgerrors.NewUsageError("config.Load", "--customer-data is required unless --check is given")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, pkgerrors.NewValidationError("log-level", "must be one of debug, info, warn, error", cfg.LogLevel)
	}

	return cfg, nil
}
