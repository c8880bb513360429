// Package cli turns the process arguments into validated run parameters and
// brings up logging as part of the same call.
//
// Precedence, highest first: command-line flags, SPLATFORGE_* environment
// variables, the YAML file named by --config, built-in defaults.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hartyporpoise/splatforge/internal/config"
	"github.com/hartyporpoise/splatforge/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix namespaces environment overrides (SPLATFORGE_ITERATIONS, ...).
const EnvPrefix = "SPLATFORGE"

// ErrHelp is returned when --help or --version was handled and there is
// nothing to run.
var ErrHelp = errors.New("help requested")

// ParseError reports arguments or parameters that could not be accepted.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Parser parses arguments with cobra and viper.
type Parser struct {
	// Version is printed by --version.
	Version string

	// Stdout receives help and version text. Defaults to os.Stdout.
	Stdout io.Writer

	// Stderr receives cobra usage errors. Defaults to os.Stderr.
	Stderr io.Writer

	// LogConsole is the console sink for the logger. Defaults to os.Stdout.
	LogConsole io.Writer
}

// flagKeys maps flag names to viper keys (the mapstructure tags of
// config.Parameters).
var flagKeys = map[string]string{
	"data-path":     "data_path",
	"output-path":   "output_path",
	"iter":          "iterations",
	"resize_factor": "resize_factor",
	"sh-degree":     "sh_degree",
	"max-cap":       "max_cap",
	"strategy":      "strategy",
	"headless":      "headless",
	"eval":          "eval",
	"dry-run":       "dry_run",
	"log-level":     "log_level",
	"log-file":      "log_file",
	"config":        "config",
}

// Parse parses args (without the program name). The logger is initialised
// before Parse returns, whatever the outcome, so callers can log errors.
func (p *Parser) Parse(args []string) (*config.Bundle, error) {
	v := viper.New()
	params, err := p.parse(v, args)

	opts := logger.Options{Level: logger.DefaultLevel, Console: p.LogConsole}
	if err == nil {
		opts.Level = params.LogLevel
		opts.File = params.LogFile
	} else if lvl := v.GetString("log_level"); lvl != "" {
		if _, lerr := logger.ParseLevel(lvl); lerr == nil {
			opts.Level = lvl
		}
	}
	sugar, logErr := logger.Init(opts)
	if logErr != nil {
		sugar.Warnf("Logger setup: %v", logErr)
	}

	if err != nil {
		if errors.Is(err, ErrHelp) {
			return nil, err
		}
		return nil, &ParseError{Err: err}
	}
	sugar.Debugw("Parameters parsed",
		"data_path", params.DataPath,
		"output_path", params.OutputPath,
		"iterations", params.Iterations,
		"config_file", v.ConfigFileUsed())
	return config.NewBundle(params), nil
}

func (p *Parser) parse(v *viper.Viper, args []string) (*config.Parameters, error) {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	ran := false
	cmd := newCommand(p.Version, func() { ran = true })
	cmd.SetArgs(args)
	cmd.SetOut(orDefault(p.Stdout, os.Stdout))
	cmd.SetErr(orDefault(p.Stderr, os.Stderr))

	if err := bind(v, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrHelp
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var params config.Parameters
	if err := v.Unmarshal(&params); err != nil {
		return nil, fmt.Errorf("unable to decode parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

func newCommand(version string, run func()) *cobra.Command {
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:   "splatforge",
		Short: "splatforge — Gaussian splatting trainer and viewer",
		Example: `  splatforge -d data/garden -o output/garden --headless
  splatforge --config run.yaml`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			run()
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("data-path", "d", "", "Scene dataset directory (COLMAP or transforms.json)")
	f.StringP("output-path", "o", d.OutputPath, "Directory for checkpoints and renders")
	f.IntP("iter", "i", d.Iterations, "Number of training iterations")
	f.IntP("resize_factor", "r", d.ResizeFactor, "Downsample input images by 1, 2, 4 or 8")
	f.Int("sh-degree", d.SHDegree, "Maximum spherical harmonics degree (0-3)")
	f.Int("max-cap", d.MaxCapacity, "Maximum number of Gaussians")
	f.String("strategy", d.Strategy, "Densification strategy: mcmc or default")
	f.Bool("headless", false, "Train without opening the viewer")
	f.Bool("eval", false, "Hold out every 8th image for evaluation")
	f.Bool("dry-run", false, "Prepare the output directory and exit")
	f.String("log-level", d.LogLevel, "Log level: trace, debug, info, warn, error, critical, off")
	f.String("log-file", "", "Also write JSON logs to this file")
	f.String("config", "", "YAML file with parameters (flags take precedence)")
	return cmd
}

func bind(v *viper.Viper, f *pflag.FlagSet) error {
	d := config.Defaults()
	v.SetDefault("output_path", d.OutputPath)
	v.SetDefault("iterations", d.Iterations)
	v.SetDefault("resize_factor", d.ResizeFactor)
	v.SetDefault("sh_degree", d.SHDegree)
	v.SetDefault("max_cap", d.MaxCapacity)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func orDefault(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

// Logger returns the logger installed by Parse.
func Logger() *zap.SugaredLogger {
	return zap.S()
}
