// Package cudaalloc configures the CUDA caching allocator before any device
// memory is touched.
//
// Expandable segments let the allocator grow a mapping in place instead of
// carving new fixed-size blocks, which keeps fragmentation flat across the
// allocate/free cycles of densification. Without it the trainer would have to
// empty the cache after every densification step.
package cudaalloc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hartyporpoise/splatforge/internal/gpuenv"
)

const (
	// EnvVar is read by libtorch's caching allocator at first use.
	EnvVar = "PYTORCH_CUDA_ALLOC_CONF"

	// ExpandableSegments is the policy applied at startup.
	ExpandableSegments = "expandable_segments:True"
)

// ErrUnsupportedPlatform is returned when the allocator on this platform has
// no expandable segment support. Callers skip configuration.
var ErrUnsupportedPlatform = errors.New("cudaalloc: allocator settings not supported on this platform")

// Setting is one key:value pair of an allocator policy.
type Setting struct {
	Key   string
	Value string
}

// Policy is an ordered list of allocator settings.
type Policy []Setting

// ParsePolicy parses a comma separated "key:value" list and validates each
// known key. Empty input yields an empty policy.
func ParsePolicy(s string) (Policy, error) {
	var p Policy
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("cudaalloc: malformed setting %q, want key:value", part)
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if err := validate(key, val); err != nil {
			return nil, err
		}
		p = append(p, Setting{Key: key, Value: val})
	}
	return p, nil
}

func validate(key, val string) error {
	switch key {
	case "expandable_segments":
		if val != "True" && val != "False" {
			return fmt.Errorf("cudaalloc: expandable_segments must be True or False, got %q", val)
		}
	case "max_split_size_mb":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 20 {
			return fmt.Errorf("cudaalloc: max_split_size_mb must be an integer > 20, got %q", val)
		}
	case "garbage_collection_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("cudaalloc: garbage_collection_threshold must be in (0, 1), got %q", val)
		}
	case "roundup_power2_divisions":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("cudaalloc: roundup_power2_divisions must be a power of two, got %q", val)
		}
	case "backend":
		if val != "native" && val != "cudaMallocAsync" {
			return fmt.Errorf("cudaalloc: unknown backend %q", val)
		}
	default:
		return fmt.Errorf("cudaalloc: unknown setting %q", key)
	}
	return nil
}

// Get returns the value of key and whether it is present.
func (p Policy) Get(key string) (string, bool) {
	for _, s := range p {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Merge returns p with every key of o set to o's value. Keys only in p keep
// their position; new keys are appended in o's order.
func (p Policy) Merge(o Policy) Policy {
	out := append(Policy(nil), p...)
	for _, s := range o {
		replaced := false
		for i := range out {
			if out[i].Key == s.Key {
				out[i].Value = s.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, s)
		}
	}
	return out
}

func (p Policy) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Key + ":" + s.Value
	}
	return strings.Join(parts, ",")
}

// Setter hands a validated policy to the allocator.
type Setter interface {
	SetAllocatorSettings(policy string) error
}

// Current parses the allocator policy held in env. An unset variable yields
// an empty policy.
func Current(env gpuenv.Env) (Policy, error) {
	cur, _ := env.Lookup(EnvVar)
	return ParsePolicy(cur)
}

// ExpandableSegmentsEnabled reports whether the policy in env turns
// expandable segments on.
func ExpandableSegmentsEnabled(env gpuenv.Env) bool {
	p, err := Current(env)
	if err != nil {
		return false
	}
	v, _ := p.Get("expandable_segments")
	return v == "True"
}

// EnvSetter merges the policy into PYTORCH_CUDA_ALLOC_CONF, which the caching
// allocator of any CUDA runtime in this process or its children reads at
// first allocation. Settings already present in the variable survive unless
// the policy overrides them.
type EnvSetter struct {
	Env gpuenv.Env
}

// NewEnvSetter returns an EnvSetter bound to the process environment.
func NewEnvSetter() *EnvSetter {
	return &EnvSetter{Env: gpuenv.OSEnv{}}
}

func (s *EnvSetter) SetAllocatorSettings(policy string) error {
	want, err := ParsePolicy(policy)
	if err != nil {
		return err
	}
	have, err := Current(s.Env)
	if err != nil {
		// A broken inherited value would make libtorch abort; replace it.
		have = nil
	}
	if err := s.Env.Set(EnvVar, have.Merge(want).String()); err != nil {
		return fmt.Errorf("set %s: %w", EnvVar, err)
	}
	return nil
}

// Configure validates policy and applies it through s. On platforms without
// expandable segment support it returns ErrUnsupportedPlatform without
// calling s.
func Configure(s Setter, policy string) error {
	if !Supported {
		return ErrUnsupportedPlatform
	}
	if _, err := ParsePolicy(policy); err != nil {
		return err
	}
	return s.SetAllocatorSettings(policy)
}
