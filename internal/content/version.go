package content

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
)

// MinimumDaemonVersion is the lowest daemon version the node will operate
// against without triggering an upgrade.
const MinimumDaemonVersion = "0.32.1"

// upgradeLock is the process-wide lock guarding a daemon binary upgrade:
// only one network worker may stop/replace/restart the shared daemon at a
// time.
var upgradeLock sync.Mutex

// versionLock is the process-wide lock serializing every network worker's
// read-compare-write of the shared version cache in ReconcileLocalVersion.
var versionLock sync.Mutex

// VersionManager implements two-layer version-change protocol:
// a process-wide daemon upgrade when the installed daemon is below the
// minimum, and a per-network drift check against the shared version cache
// that follows.
type VersionManager struct {
	network       string
	loopbackLocal bool
	contentDir    string
	ledgerPath    string
	pinnedPath    string

	globalVersionCache *cache.KV // shared across every network: "global" -> version
	localVersionCache  *cache.KV // per-network: network -> last-seen version

	log zerolog.Logger
}

// NewVersionManager opens the shared and per-network version caches.
func NewVersionManager(network, globalVersionFile, localVersionFile, contentDir, ledgerPath, pinnedPath string, loopbackLocal bool, log zerolog.Logger) (*VersionManager, error) {
	global, err := cache.NewKV(globalVersionFile, 1)
	if err != nil {
		return nil, fmt.Errorf("open global version cache: %w", err)
	}
	local, err := cache.NewKV(localVersionFile, 64)
	if err != nil {
		return nil, fmt.Errorf("open local version cache: %w", err)
	}
	return &VersionManager{
		network:            network,
		loopbackLocal:      loopbackLocal,
		contentDir:         contentDir,
		ledgerPath:         ledgerPath,
		pinnedPath:         pinnedPath,
		globalVersionCache: global,
		localVersionCache:  local,
		log:                log.With().Str("component", "content.version").Str("network", network).Logger(),
	}, nil
}

// EnsureDaemonVersion probes the daemon's version and, if it is below
// MinimumDaemonVersion and the endpoint is loopback, performs the process-
// wide upgrade: stop the daemon, wipe every network's content directory
// prefix and cache ledgers, install and start the new binary, and record
// the new global version.
func (v *VersionManager) EnsureDaemonVersion(ctx context.Context, c *Client, contentDirs map[string]string, ledgerPaths, pinnedPaths []string) error {
	installed, _, err := c.sh.Version()
	if err != nil {
		return fmt.Errorf("probe daemon version: %w", err)
	}
	if !versionBelow(installed, MinimumDaemonVersion) {
		return nil
	}
	if !v.loopbackLocal {
		v.log.Warn().Str("installed", installed).Msg("daemon below minimum version but endpoint is not local, cannot upgrade")
		return nil
	}

	upgradeLock.Lock()
	defer upgradeLock.Unlock()

	v.log.Warn().Str("installed", installed).Str("minimum", MinimumDaemonVersion).Msg("upgrading content daemon")

	if err := stopLocalDaemon(ctx); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	for network, dir := range contentDirs {
		if err := os.RemoveAll(dir); err != nil {
			v.log.Error().Err(err).Str("network", network).Msg("wipe content dir failed")
		}
	}
	for _, p := range ledgerPaths {
		os.Remove(p)
	}
	for _, p := range pinnedPaths {
		os.Remove(p)
	}
	if err := installDaemonBinary(ctx, MinimumDaemonVersion); err != nil {
		return fmt.Errorf("install daemon: %w", err)
	}
	if err := startLocalDaemon(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	return v.globalVersionCache.Add("global", MinimumDaemonVersion)
}

// ReconcileLocalVersion implements the second, per-network layer: on boot,
// under the process-wide versionLock, compare this worker's last-seen
// version to the shared global entry; on mismatch wipe its own content
// directory and cache ledger and record the new version as seen.
func (v *VersionManager) ReconcileLocalVersion() error {
	versionLock.Lock()
	defer versionLock.Unlock()

	globalVersion, ok := v.globalVersionCache.Get("global")
	if !ok {
		return nil
	}
	localVersion, _ := v.localVersionCache.Get(v.network)
	if localVersion == globalVersion {
		return nil
	}

	v.log.Info().Str("from", localVersion).Str("to", globalVersion).Msg("content daemon version drift detected, wiping local state")
	if err := os.RemoveAll(v.contentDir); err != nil {
		return fmt.Errorf("wipe content dir: %w", err)
	}
	os.Remove(v.ledgerPath)
	os.Remove(v.pinnedPath)

	return v.localVersionCache.Add(v.network, globalVersion)
}

func versionBelow(installed, minimum string) bool {
	return compareVersions(installed, minimum) < 0
}

// compareVersions compares two "a.b.c" version strings numerically,
// component by component.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an = atoiSafe(as[i])
		}
		if i < len(bs) {
			bn = atoiSafe(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func stopLocalDaemon(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	return exec.CommandContext(ctx, "systemctl", "stop", "ipfs").Run()
}

func startLocalDaemon(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	return exec.CommandContext(ctx, "systemctl", "start", "ipfs").Run()
}

// installDaemonBinary downloads and installs the daemon binary for
// version. The actual distribution channel is operator-specific
//; here it shells out
// to a provisioning script the deployment image is expected to supply.
func installDaemonBinary(ctx context.Context, version string) error {
	script := filepath.Join("/opt/etny/node", "install-ipfs.sh")
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("install script %s not found: %w", script, err)
	}
	return exec.CommandContext(ctx, script, version).Run()
}
