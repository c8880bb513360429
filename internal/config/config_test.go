package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// newTestParameters returns valid Parameters for testing
func newTestParameters() Parameters {
	p := Defaults()
	p.DataPath = "foo"
	p.Iterations = 100
	return p
}

func TestDefaultsNeedOnlyDataPath(t *testing.T) {
	p := Defaults()
	assert.Error(t, p.Validate())

	p.DataPath = "scenes/garden"
	assert.NoError(t, p.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Parameters)
		wantErr string
	}{
		{"valid", func(*Parameters) {}, ""},
		{"missing data path", func(p *Parameters) { p.DataPath = "" }, "missing --data-path"},
		{"missing output path", func(p *Parameters) { p.OutputPath = "" }, "missing --output-path"},
		{"zero iterations", func(p *Parameters) { p.Iterations = 0 }, "invalid --iter: 0 does not satisfy gt=0"},
		{"bad resize", func(p *Parameters) { p.ResizeFactor = 3 }, "invalid --resize_factor: 3 does not satisfy oneof=1 2 4 8"},
		{"sh degree too high", func(p *Parameters) { p.SHDegree = 4 }, "invalid --sh-degree: 4 does not satisfy lte=3"},
		{"unknown strategy", func(p *Parameters) { p.Strategy = "adc" }, "invalid --strategy: adc"},
		{"unknown log level", func(p *Parameters) { p.LogLevel = "verbose" }, "invalid --log-level: verbose"},
		{"critical log level", func(p *Parameters) { p.LogLevel = "critical" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParameters()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotContains(t, err.Error(), "  ")
		})
	}
}

func TestValidateMissingDataPathMessage(t *testing.T) {
	p := Defaults()
	err := p.Validate()
	require.Error(t, err)
	assert.Equal(t, "missing --data-path", err.Error())
}

func TestSnapshot(t *testing.T) {
	p := newTestParameters()
	p.ConfigFile = "ignored.yaml"

	var buf bytes.Buffer
	require.NoError(t, p.Snapshot(&buf, "run-1"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "foo", got["data_path"])
	assert.Equal(t, 100, got["iterations"])
	assert.NotContains(t, got, "config")
	assert.NotContains(t, got, "log_file")
}

func TestBundleTake(t *testing.T) {
	p := newTestParameters()
	b := NewBundle(&p)

	got := b.Take()
	assert.Same(t, &p, got)
	assert.Panics(t, func() { b.Take() })
}
