// Package boot runs the process start-up sequence: GPU vendor selection,
// CUDA allocator configuration, argument parsing with logger setup, start-up
// diagnostics and the handoff to the application controller.
//
// Every step runs once, in order, on the calling goroutine. Process-wide
// state (environment, allocator settings) is only written before the
// application starts any goroutines of its own.
package boot

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/hartyporpoise/splatforge/internal/app"
	"github.com/hartyporpoise/splatforge/internal/cli"
	"github.com/hartyporpoise/splatforge/internal/config"
	"github.com/hartyporpoise/splatforge/internal/cudaalloc"
	"github.com/hartyporpoise/splatforge/internal/gpuenv"
	"github.com/hartyporpoise/splatforge/internal/hostinfo"
	"github.com/mattn/go-isatty"
)

// ExitParseFailure is returned when the arguments cannot be parsed.
const ExitParseFailure = -1

// ProductName is shown in the start-up banner.
const ProductName = "splatforge"

// Logger is what the sequence needs from the logger the parser sets up.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Infof(template string, args ...any)
	Errorf(template string, args ...any)
	Debugw(msg string, keysAndValues ...any)
}

// Parser parses process arguments and initialises logging as a side effect,
// whether or not parsing succeeds.
type Parser interface {
	Parse(args []string) (*config.Bundle, error)
}

// Deps are the collaborators of the sequence.
type Deps struct {
	Env       gpuenv.Env
	Allocator cudaalloc.Setter
	Parser    Parser

	// Logger returns the logger; it is only called after Parse.
	Logger func() Logger

	// NewApp constructs the application controller; called once.
	NewApp func() app.Application

	// HostInfo is optional; nil skips host diagnostics.
	HostInfo func() hostinfo.Info

	// Stderr receives the parse error line. Defaults to os.Stderr.
	Stderr io.Writer

	// OnStage, if set, observes every state transition.
	OnStage func(Stage)
}

// DefaultDeps wires the sequence to the real process.
func DefaultDeps(version string) Deps {
	return Deps{
		Env:       gpuenv.OSEnv{},
		Allocator: cudaalloc.NewEnvSetter(),
		Parser:    &cli.Parser{Version: version},
		Logger:    func() Logger { return cli.Logger() },
		NewApp:    func() app.Application { return app.New(cli.Logger(), nil) },
		HostInfo:  hostinfo.Detect,
		Stderr:    os.Stderr,
	}
}

// errorLine returns the style for the stderr error line. color decides from
// os.Stdout, so colour is turned off again unless w itself is a terminal.
func errorLine(w io.Writer) *color.Color {
	c := color.New(color.FgRed, color.Bold)
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		c.DisableColor()
	}
	return c
}

// Run executes the sequence and returns the process exit code.
func Run(args []string, d Deps) int {
	s := &sequence{deps: d}
	s.enter(StageStart)
	code := s.run(args)
	s.enter(StageTerminated)
	return code
}

type sequence struct {
	deps Deps
}

func (s *sequence) enter(st Stage) {
	if s.deps.OnStage != nil {
		s.deps.OnStage(st)
	}
}

func (s *sequence) run(args []string) int {
	d := s.deps

	// ── 1. GPU vendor selection (before any GL context exists) ────────────
	changed := gpuenv.Request(d.Env)
	s.enter(StageEnvSelected)

	// ── 2. CUDA allocator ─────────────────────────────────────────────────
	allocErr := cudaalloc.Configure(d.Allocator, cudaalloc.ExpandableSegments)
	s.enter(StageAllocatorConfigured)

	// ── 3. Arguments (initialises the logger) ─────────────────────────────
	bundle, err := d.Parser.Parse(args)
	log := d.Logger()
	if errors.Is(err, cli.ErrHelp) {
		// help and version text are already printed; nothing was parsed
		return app.ExitOK
	}
	if err != nil {
		s.enter(StageParseFailed)
		log.Errorf("Failed to parse arguments: %v", err)
		stderr := d.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		errorLine(stderr).Fprintf(stderr, "Error: %v\n", err)
		return ExitParseFailure
	}
	s.enter(StageParseSucceeded)

	// ── 4. Diagnostics ────────────────────────────────────────────────────
	if gpuenv.Supported && gpuenv.Load(d.Env).OffloadRequested() {
		log.Infof("Requested NVIDIA OpenGL via PRIME offload (%s=%s)", gpuenv.VendorVar, gpuenv.TargetVendor)
	}
	log.Debugw("GPU vendor selection",
		"supported", gpuenv.Supported,
		"env_changed", changed,
		"env", gpuenv.Load(d.Env).Environ())
	switch {
	case errors.Is(allocErr, cudaalloc.ErrUnsupportedPlatform):
		log.Debugw("CUDA allocator settings skipped", "reason", "unsupported platform")
	case allocErr != nil:
		log.Debugw("CUDA allocator settings not applied", "error", allocErr.Error())
	default:
		log.Debugw("CUDA allocator configured",
			"policy", cudaalloc.ExpandableSegments,
			"expandable_segments", cudaalloc.ExpandableSegmentsEnabled(d.Env))
	}
	if d.HostInfo != nil {
		h := d.HostInfo()
		log.Debugw("Host",
			"logical_cpus", h.LogicalCPUs,
			"simd", h.SIMDSummary(),
			"nvidia", h.HasNVIDIA(),
			"nvidia_devices", h.NVIDIADevices,
			"nvidia_driver", h.DriverVersion)
	}
	s.enter(StageDiagnosticsLogged)

	// ── 5. Handoff ────────────────────────────────────────────────────────
	log.Infof("========================================")
	log.Infof("%s", ProductName)
	log.Infof("========================================")

	application := d.NewApp()
	s.enter(StageHandoff)
	return application.Run(bundle.Take())
}
