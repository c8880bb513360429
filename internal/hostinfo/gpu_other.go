//go:build !linux

package hostinfo

// detectGPU is a no-op: device nodes are a Linux convention.
func detectGPU(root string, info *Info) {}
