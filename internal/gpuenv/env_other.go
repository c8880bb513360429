// PRIME render offload and GLVND vendor selection only exist on Linux.

//go:build !linux

package gpuenv

// Supported is false: the offload variables are ignored on this platform.
const Supported = false
