// Package hostinfo collects the hardware facts logged at startup: CPU SIMD
// features and NVIDIA driver presence. Detection is best-effort and never
// fails; anything that cannot be confirmed is reported as absent.
package hostinfo

import (
	"runtime"
	"strings"
)

// Info describes the machine the process runs on.
type Info struct {
	// LogicalCPUs is runtime.NumCPU().
	LogicalCPUs int

	// SIMD lists confirmed vector extensions, e.g. "AVX2", "NEON".
	SIMD []string

	// NVIDIADevices lists the /dev/nvidiaN nodes that are accessible.
	NVIDIADevices []string

	// DriverVersion is the first line of /proc/driver/nvidia/version, if any.
	DriverVersion string
}

// Detect inspects the current machine.
func Detect() Info {
	info := Info{
		LogicalCPUs: runtime.NumCPU(),
		SIMD:        simdFeatures(),
	}
	detectGPU("/", &info)
	return info
}

// HasNVIDIA reports whether the NVIDIA kernel driver is visible.
func (i Info) HasNVIDIA() bool {
	return len(i.NVIDIADevices) > 0 || i.DriverVersion != ""
}

// SIMDSummary returns the SIMD list as a single string.
func (i Info) SIMDSummary() string {
	if len(i.SIMD) == 0 {
		return "none detected"
	}
	return strings.Join(i.SIMD, " ")
}
