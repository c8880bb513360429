// splatforge: Gaussian splatting trainer and viewer
//
// Usage:
//
//	splatforge -d data/garden -o output/garden --headless
//	splatforge --config run.yaml --log-level debug
//
// The start-up sequence in internal/boot must run before anything creates a
// GL context or touches CUDA memory.
package main

import (
	"os"

	"github.com/hartyporpoise/splatforge/internal/boot"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	code := boot.Run(os.Args[1:], boot.DefaultDeps(version))
	_ = zap.L().Sync()
	os.Exit(code)
}
