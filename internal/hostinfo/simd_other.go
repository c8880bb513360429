//go:build !amd64 && !arm64

package hostinfo

func simdFeatures() []string { return nil }
