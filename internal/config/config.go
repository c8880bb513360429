// Package config defines the validated run parameters for splatforge.
package config

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Parameters holds all settings passed in via CLI flags, environment
// variables or a config file.
type Parameters struct {
	// DataPath is the scene dataset directory (COLMAP or Blender layout).
	DataPath string `mapstructure:"data_path" flag:"data-path" yaml:"data_path" validate:"required"`

	// OutputPath receives checkpoints, renders and the run config snapshot.
	OutputPath string `mapstructure:"output_path" flag:"output-path" yaml:"output_path" validate:"required"`

	// Iterations is the number of optimisation steps.
	Iterations int `mapstructure:"iterations" flag:"iter" yaml:"iterations" validate:"gt=0"`

	// ResizeFactor downsamples input images by this factor.
	ResizeFactor int `mapstructure:"resize_factor" flag:"resize_factor" yaml:"resize_factor" validate:"oneof=1 2 4 8"`

	// SHDegree is the maximum spherical harmonics degree.
	SHDegree int `mapstructure:"sh_degree" flag:"sh-degree" yaml:"sh_degree" validate:"gte=0,lte=3"`

	// MaxCapacity caps the number of Gaussians (MCMC strategy).
	MaxCapacity int `mapstructure:"max_cap" flag:"max-cap" yaml:"max_cap" validate:"gt=0"`

	// Strategy picks the densification strategy.
	Strategy string `mapstructure:"strategy" flag:"strategy" yaml:"strategy" validate:"oneof=mcmc default"`

	Headless bool `mapstructure:"headless" flag:"headless" yaml:"headless"`
	Eval     bool `mapstructure:"eval" flag:"eval" yaml:"eval"`

	// DryRun prepares the run directory and exits without a backend.
	DryRun bool `mapstructure:"dry_run" flag:"dry-run" yaml:"dry_run"`

	LogLevel string `mapstructure:"log_level" flag:"log-level" yaml:"log_level" validate:"oneof=trace debug info warn error critical off"`
	LogFile  string `mapstructure:"log_file" flag:"log-file" yaml:"log_file,omitempty"`

	// ConfigFile is the YAML file merged under the flags, if any.
	ConfigFile string `mapstructure:"config" yaml:"-"`
}

// Defaults returns Parameters with every optional field at its default.
func Defaults() Parameters {
	return Parameters{
		OutputPath:   "output",
		Iterations:   30000,
		ResizeFactor: 1,
		SHDegree:     3,
		MaxCapacity:  1000000,
		Strategy:     "mcmc",
		LogLevel:     "info",
	}
}

var validate = newValidator()

// newValidator reports fields by the flag that sets them (--data-path),
// falling back to the config file key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("flag"); name != "" {
			return "--" + name
		}
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

// Validate checks p against its field constraints. The error names the
// first offending flag.
func (p *Parameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return fmt.Errorf("missing %s", fe.Field())
			}
			return fmt.Errorf("invalid %s: %v does not satisfy %s", fe.Field(), fe.Value(), constraint(fe))
		}
		return err
	}
	return nil
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Snapshot writes p as YAML, prefixed with the run ID.
func (p *Parameters) Snapshot(w io.Writer, runID string) error {
	doc := struct {
		RunID      string `yaml:"run_id"`
		Parameters `yaml:",inline"`
	}{runID, *p}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	return enc.Close()
}

// Bundle owns parsed Parameters until they are handed to the application.
// Take moves them out; the bundle is empty afterwards.
type Bundle struct {
	p *Parameters
}

// NewBundle wraps p. The caller must not keep p.
func NewBundle(p *Parameters) *Bundle {
	return &Bundle{p: p}
}

// Take moves the parameters out of the bundle. A second call panics.
func (b *Bundle) Take() *Parameters {
	if b.p == nil {
		panic("config: parameters already handed off")
	}
	p := b.p
	b.p = nil
	return p
}
