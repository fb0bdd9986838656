// Package hwinfo probes the host's available CPU, memory and storage so
// the CLI's --cpu/--memory/--storage flags can default to what the
// machine actually has instead of requiring the operator to look it up.
package hwinfo

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// Defaults mirrors internal/config.HardwareDefaults; neither package
// imports the other, and cmd/etny-node copies one into the other.
type Defaults struct {
	CPU     int // logical cores
	Memory  int // MB
	Storage int // MB, free space on the data directory's filesystem
}

// Probe inspects the host and returns its defaults. dataDir is statfs'd
// for free space; it need not exist yet.
func Probe(dataDir string) Defaults {
	return Defaults{
		CPU:     runtime.NumCPU(),
		Memory:  probeMemoryMB(),
		Storage: probeStorageMB(dataDir),
	}
}

// probeMemoryMB reads MemTotal out of /proc/meminfo. Non-Linux hosts and
// any parse failure fall back to 0, which then becomes the --memory
// flag's default.
func probeMemoryMB() int {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return int(kb / 1024)
	}
	return 0
}

// probeStorageMB statfs's dir's filesystem (or its nearest existing
// ancestor) for free space.
func probeStorageMB(dir string) int {
	for dir != "" {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(dir, &stat); err == nil {
			bytesFree := stat.Bavail * uint64(stat.Bsize)
			return int(bytesFree / (1024 * 1024))
		}
		parent := parentDir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return 0
}

func parentDir(dir string) string {
	i := strings.LastIndexByte(dir, '/')
	if i <= 0 {
		return "/"
	}
	return dir[:i]
}
