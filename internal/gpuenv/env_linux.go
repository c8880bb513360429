//go:build linux

package gpuenv

// Supported reports whether the platform honours the PRIME/GLVND variables.
const Supported = true
