package hostinfo

import "golang.org/x/sys/cpu"

// simdFeatures reports ARM64 vector extensions. NEON is mandatory on ARMv8-A.
func simdFeatures() []string {
	out := []string{"NEON"}
	if cpu.ARM64.HasSVE {
		out = append(out, "SVE")
	}
	return out
}
