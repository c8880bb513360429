package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hartyporpoise/splatforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

type fakeBackend struct {
	trained, viewed int
	last            *Run
	err             error
}

func (f *fakeBackend) Train(run *Run) error {
	f.trained++
	f.last = run
	return f.err
}

func (f *fakeBackend) View(run *Run) error {
	f.viewed++
	f.last = run
	return f.err
}

func colmapScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sparse", "0"), 0o755))
	return dir
}

func newTestController(b Backend) (*Controller, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core).Sugar(), b)
	c.newID = func() string { return "run-test" }
	return c, logs
}

func testParams(t *testing.T, data string) *config.Parameters {
	p := config.Defaults()
	p.DataPath = data
	p.OutputPath = filepath.Join(t.TempDir(), "out")
	return &p
}

func TestDetectLayout(t *testing.T) {
	t.Run("colmap", func(t *testing.T) {
		l, err := DetectLayout(colmapScene(t))
		require.NoError(t, err)
		assert.Equal(t, LayoutCOLMAP, l)
	})

	t.Run("blender", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "transforms_train.json"), []byte("{}"), 0o644))
		l, err := DetectLayout(dir)
		require.NoError(t, err)
		assert.Equal(t, LayoutBlender, l)
	})

	t.Run("empty dir", func(t *testing.T) {
		_, err := DetectLayout(t.TempDir())
		assert.ErrorIs(t, err, ErrUnknownLayout)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := DetectLayout(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "scene.ply")
		require.NoError(t, os.WriteFile(f, nil, 0o644))
		_, err := DetectLayout(f)
		assert.Error(t, err)
	})
}

func TestRunDispatch(t *testing.T) {
	tests := []struct {
		name      string
		headless  bool
		wantTrain int
		wantView  int
	}{
		{"headless trains", true, 1, 0},
		{"windowed views", false, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c, _ := newTestController(b)
			p := testParams(t, colmapScene(t))
			p.Headless = tt.headless

			assert.Equal(t, ExitOK, c.Run(p))
			assert.Equal(t, tt.wantTrain, b.trained)
			assert.Equal(t, tt.wantView, b.viewed)
			require.NotNil(t, b.last)
			assert.Same(t, p, b.last.Params)
			assert.Equal(t, "run-test", b.last.ID)
			assert.Equal(t, LayoutCOLMAP, b.last.Layout)
		})
	}
}

func TestRunWritesRunConfig(t *testing.T) {
	c, _ := newTestController(&fakeBackend{})
	p := testParams(t, colmapScene(t))
	p.Iterations = 100

	require.Equal(t, ExitOK, c.Run(p))

	data, err := os.ReadFile(filepath.Join(p.OutputPath, RunConfigFile))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "run-test", got["run_id"])
	assert.Equal(t, 100, got["iterations"])
}

func TestRunExitCodes(t *testing.T) {
	t.Run("bad dataset", func(t *testing.T) {
		b := &fakeBackend{}
		c, logs := newTestController(b)
		assert.Equal(t, ExitBadDataset, c.Run(testParams(t, t.TempDir())))
		assert.Zero(t, b.trained+b.viewed)
		assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	})

	t.Run("no backend", func(t *testing.T) {
		c, _ := newTestController(nil)
		assert.Equal(t, ExitNoBackend, c.Run(testParams(t, colmapScene(t))))
	})

	t.Run("dry run without backend", func(t *testing.T) {
		c, logs := newTestController(nil)
		p := testParams(t, colmapScene(t))
		p.DryRun = true
		assert.Equal(t, ExitOK, c.Run(p))
		assert.FileExists(t, filepath.Join(p.OutputPath, RunConfigFile))
		assert.Equal(t, 1, logs.FilterMessage("Run prepared").Len())
	})

	t.Run("backend failure", func(t *testing.T) {
		c, _ := newTestController(&fakeBackend{err: errors.New("out of memory")})
		assert.Equal(t, ExitFailure, c.Run(testParams(t, colmapScene(t))))
	})

	t.Run("output path is a file", func(t *testing.T) {
		c, _ := newTestController(&fakeBackend{})
		p := testParams(t, colmapScene(t))
		require.NoError(t, os.WriteFile(p.OutputPath, nil, 0o644))
		assert.Equal(t, ExitFailure, c.Run(p))
	})
}
