// Package app is the application controller that takes over once the
// process environment is prepared and the parameters are parsed.
//
// The controller owns the run directory: it checks the dataset layout,
// creates the output directory, records the parameters and then hands the
// run to a Backend (trainer or viewer).
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hartyporpoise/splatforge/internal/config"
	"go.uber.org/zap"
)

// Exit codes returned by Controller.Run.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitBadDataset = 2
	ExitNoBackend  = 3
)

// RunConfigFile is written into the output directory of every run.
const RunConfigFile = "run_config.yaml"

// Application runs with the parameters it is given and returns the process
// exit code. It owns the parameters from the moment Run is called.
type Application interface {
	Run(p *config.Parameters) int
}

// Backend does the actual work of a run.
type Backend interface {
	// Train optimises the scene without a window.
	Train(run *Run) error
	// View opens the interactive viewer (training from it if requested).
	View(run *Run) error
}

// Run describes one prepared run handed to a Backend.
type Run struct {
	ID     string
	Layout Layout
	Dir    string
	Params *config.Parameters
}

// Layout is the on-disk format of a dataset.
type Layout string

const (
	LayoutCOLMAP  Layout = "colmap"
	LayoutBlender Layout = "blender"
)

// ErrUnknownLayout means the data path holds neither a COLMAP reconstruction
// nor Blender transforms.
var ErrUnknownLayout = errors.New("no sparse/0, sparse/ or transforms*.json found")

// DetectLayout inspects dir and reports its dataset layout.
func DetectLayout(dir string) (Layout, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	for _, sub := range []string{filepath.Join("sparse", "0"), "sparse"} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err == nil && fi.IsDir() {
			return LayoutCOLMAP, nil
		}
	}
	for _, name := range []string{"transforms_train.json", "transforms.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return LayoutBlender, nil
		}
	}
	return "", ErrUnknownLayout
}

// Controller is the default Application.
type Controller struct {
	log     *zap.SugaredLogger
	backend Backend
	newID   func() string
}

// New returns a Controller. backend may be nil, in which case only dry runs
// succeed.
func New(log *zap.SugaredLogger, backend Backend) *Controller {
	return &Controller{log: log, backend: backend, newID: uuid.NewString}
}

func (c *Controller) Run(p *config.Parameters) int {
	run := &Run{ID: c.newID(), Params: p, Dir: p.OutputPath}

	layout, err := DetectLayout(p.DataPath)
	if err != nil {
		c.log.Errorf("Dataset %s: %v", p.DataPath, err)
		return ExitBadDataset
	}
	run.Layout = layout
	c.log.Infow("Dataset",
		"path", p.DataPath,
		"layout", string(layout),
		"resize_factor", p.ResizeFactor)

	if err := c.prepare(run); err != nil {
		c.log.Errorf("Preparing output directory: %v", err)
		return ExitFailure
	}
	c.log.Infow("Run prepared", "run_id", run.ID, "output", run.Dir)

	if p.DryRun {
		c.log.Info("Dry run requested, not starting a backend")
		return ExitOK
	}
	if c.backend == nil {
		c.log.Error("No training or viewer backend is registered in this build")
		return ExitNoBackend
	}

	if p.Headless {
		c.log.Infof("Starting headless training for %d iterations", p.Iterations)
		err = c.backend.Train(run)
	} else {
		c.log.Info("Starting viewer")
		err = c.backend.View(run)
	}
	if err != nil {
		c.log.Errorf("Run %s failed: %v", run.ID, err)
		return ExitFailure
	}
	return ExitOK
}

// prepare creates the output directory and records the run parameters.
func (c *Controller) prepare(run *Run) error {
	if err := os.MkdirAll(run.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", run.Dir, err)
	}
	path := filepath.Join(run.Dir, RunConfigFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := run.Params.Snapshot(f, run.ID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
