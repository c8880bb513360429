//go:build !windows

package cudaalloc

// Supported reports whether the allocator accepts expandable segment settings.
const Supported = true
