// Package gpuenv selects the NVIDIA OpenGL driver on Linux PRIME/GLVND systems
// so the GL context lands on the same GPU as CUDA.
//
// Two variables are read by the GLVND loader when the first GL context is
// created, so they must be in place before any windowing or GL initialisation:
//
//	__NV_PRIME_RENDER_OFFLOAD=1
//	__GLX_VENDOR_LIBRARY_NAME=nvidia
//
// Selection is a pure function over a Config snapshot; only Apply touches the
// process environment.
package gpuenv

import "os"

const (
	// OffloadVar requests PRIME render offload to the discrete GPU.
	OffloadVar = "__NV_PRIME_RENDER_OFFLOAD"

	// VendorVar selects the GLVND vendor library.
	VendorVar = "__GLX_VENDOR_LIBRARY_NAME"

	// TargetOffload is the value OffloadVar must hold.
	TargetOffload = "1"

	// TargetVendor is the value VendorVar must hold.
	TargetVendor = "nvidia"
)

// Config is a snapshot of the two offload variables. Empty means unset.
type Config struct {
	RenderOffload string // __NV_PRIME_RENDER_OFFLOAD
	VendorLibrary string // __GLX_VENDOR_LIBRARY_NAME
}

// Target is the configuration Select converges to.
var Target = Config{RenderOffload: TargetOffload, VendorLibrary: TargetVendor}

// Env is the slice of the process environment gpuenv needs.
type Env interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
}

// OSEnv reads and writes the real process environment.
type OSEnv struct{}

func (OSEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnv) Set(key, value string) error { return os.Setenv(key, value) }

// Select returns the configuration that requests the NVIDIA GL driver and
// reports whether it differs from current. Any entry that is missing or not
// at its target value is replaced.
func Select(current Config) (Config, bool) {
	next := current
	changed := false
	if current.RenderOffload != TargetOffload {
		next.RenderOffload = TargetOffload
		changed = true
	}
	if current.VendorLibrary != TargetVendor {
		next.VendorLibrary = TargetVendor
		changed = true
	}
	return next, changed
}

// OffloadRequested reports whether both entries hold their target values.
func (c Config) OffloadRequested() bool {
	return c.RenderOffload == TargetOffload && c.VendorLibrary == TargetVendor
}

// Environ renders c as KEY=VALUE pairs, skipping unset entries.
func (c Config) Environ() []string {
	var out []string
	if c.RenderOffload != "" {
		out = append(out, OffloadVar+"="+c.RenderOffload)
	}
	if c.VendorLibrary != "" {
		out = append(out, VendorVar+"="+c.VendorLibrary)
	}
	return out
}

// Load reads the current offload variables from env.
func Load(env Env) Config {
	var c Config
	c.RenderOffload, _ = env.Lookup(OffloadVar)
	c.VendorLibrary, _ = env.Lookup(VendorVar)
	return c
}

// Apply writes c into env. Set errors are dropped: a failed write shows up
// later as the driver loader picking the default vendor.
func Apply(env Env, c Config) {
	_ = env.Set(OffloadVar, c.RenderOffload)
	_ = env.Set(VendorVar, c.VendorLibrary)
}

// Request loads the environment, selects the NVIDIA driver and applies the
// result when anything changed. It returns whether a write happened. On
// platforms without PRIME/GLVND it does nothing and returns false.
func Request(env Env) bool {
	if !Supported {
		return false
	}
	next, changed := Select(Load(env))
	if changed {
		Apply(env, next)
	}
	return changed
}
