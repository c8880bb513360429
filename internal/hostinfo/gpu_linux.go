//go:build linux

package hostinfo

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// detectGPU looks for NVIDIA device nodes and the driver version file under root.
func detectGPU(root string, info *Info) {
	nodes, _ := filepath.Glob(filepath.Join(root, "dev", "nvidia[0-9]*"))
	sort.Strings(nodes)
	for _, n := range nodes {
		// The GL and CUDA user-space drivers both open the node read-write.
		if unix.Access(n, unix.R_OK|unix.W_OK) == nil {
			info.NVIDIADevices = append(info.NVIDIADevices, filepath.Base(n))
		}
	}

	f, err := os.Open(filepath.Join(root, "proc", "driver", "nvidia", "version"))
	if err != nil {
		return
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if s.Scan() {
		info.DriverVersion = strings.TrimSpace(s.Text())
	}
}
