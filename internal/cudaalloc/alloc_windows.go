//go:build windows

package cudaalloc

// Supported is false: the Windows caching allocator has no expandable segments.
const Supported = false
