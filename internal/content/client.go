// Package content implements the content-addressed store client: a local
// daemon (github.com/ipfs/go-ipfs-api) with an HTTP gateway fallback,
// version-drift detection across workers, and weekly garbage collection —
// the content store.
package content

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/metrics"
	"github.com/ethernity-cloud/mvp-pox-node/internal/retry"
)

// downloadPolicy is exponential backoff: 5 attempts, waiting 1s, 2s, 4s
// and 8s between them.
var downloadPolicy = retry.ExpBackoff(5, time.Second)

// Client is one network's content store client.
type Client struct {
	network       string
	daemonURL     string
	gatewayURL    string
	contentDir    string
	loopbackLocal bool

	sh     *shell.Shell
	ledger *cache.TimestampedSet // cid -> last-downloaded-at
	pinned *cache.Set            // cids known pinned locally

	log zerolog.Logger
}

// Config configures one network's content store client.
type Config struct {
	Network     string
	DaemonURL   string // e.g. "localhost:5001"
	GatewayURL  string // e.g. "https://ipfs.io", "" disables the fallback
	ContentDir  string
	LedgerPath  string
	PinnedPath  string
	LedgerLimit int
}

// NewClient opens (or creates) the CID ledger and pinned-set files and
// connects a shell to the local daemon.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	ledger, err := cache.NewTimestampedSet(cfg.LedgerPath, cfg.LedgerLimit)
	if err != nil {
		return nil, fmt.Errorf("open content ledger: %w", err)
	}
	pinned, err := cache.NewSet(cfg.PinnedPath, cfg.LedgerLimit)
	if err != nil {
		return nil, fmt.Errorf("open pinned set: %w", err)
	}

	return &Client{
		network:       cfg.Network,
		daemonURL:     cfg.DaemonURL,
		gatewayURL:    cfg.GatewayURL,
		contentDir:    cfg.ContentDir,
		loopbackLocal: isLoopback(cfg.DaemonURL),
		sh:            shell.NewShell(cfg.DaemonURL),
		ledger:        ledger,
		pinned:        pinned,
		log:           log.With().Str("component", "content").Str("network", cfg.Network).Logger(),
	}, nil
}

// Download fetches cid into the content directory, following // algorithm: cache check, then gateway, then daemon pin+get, recording the
// CID in the local cache ledger on success. It is idempotent: a second call
// for an already-cached CID is a no-op.
func (c *Client) Download(ctx context.Context, cid string) error {
	if c.ledger.Contains(cid) {
		return nil
	}

	if c.gatewayURL != "" && !c.pinned.Contains(cid) {
		if err := c.downloadViaGateway(ctx, cid); err == nil {
			c.ledger.Add(cid)
			metrics.ContentDownloadsTotal.WithLabelValues("gateway", "ok").Inc()
			return nil
		}
		metrics.ContentDownloadsTotal.WithLabelValues("gateway", "error").Inc()
	}

	err := c.downloadViaDaemon(ctx, cid)
	if err != nil {
		metrics.ContentDownloadsTotal.WithLabelValues("daemon", "error").Inc()
		return err
	}
	metrics.ContentDownloadsTotal.WithLabelValues("daemon", "ok").Inc()

	c.ledger.Add(cid)
	c.pinned.Add(cid)
	return nil
}

// DownloadMany downloads every cid in lst, stopping at the first failure
//.
func (c *Client) DownloadMany(ctx context.Context, cids []string) error {
	for _, cid := range cids {
		if err := c.Download(ctx, cid); err != nil {
			return fmt.Errorf("download %s: %w", cid, err)
		}
	}
	return nil
}

func (c *Client) downloadViaGateway(ctx context.Context, cid string) error {
	return retry.Do(ctx, downloadPolicy, func(int) error {
		return fetchViaGateway(ctx, c.gatewayURL, cid, c.contentDir)
	})
}

func (c *Client) downloadViaDaemon(ctx context.Context, cid string) error {
	op := func(int) error {
		if err := c.sh.Pin(cid); err != nil {
			return err
		}
		return c.sh.Get(cid, c.contentDir)
	}

	err := retry.Do(ctx, downloadPolicy, op)
	if err == nil {
		return nil
	}
	if !c.loopbackLocal {
		return fmt.Errorf("%w: %v", ErrDaemonUnresponsive, err)
	}

	c.log.Warn().Err(err).Msg("local daemon unresponsive, attempting one restart")
	if restartErr := restartLocalDaemon(ctx); restartErr != nil {
		return fmt.Errorf("%w: restart failed: %v", ErrDaemonUnresponsive, restartErr)
	}
	c.sh = shell.NewShell(c.daemonURL)
	if err := op(0); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnresponsive, err)
	}
	return nil
}

// Upload adds path (file or directory) to the local daemon and returns its
// CID.
func (c *Client) Upload(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return c.sh.AddDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return c.sh.Add(f)
}

// PinAdd pins cid on the local daemon, pulling it from the swarm if needed.
func (c *Client) PinAdd(cid string) error {
	if err := c.sh.Pin(cid); err != nil {
		return err
	}
	c.pinned.Add(cid)
	return nil
}

// PinRemove unpins cid on the local daemon.
func (c *Client) PinRemove(cid string) error {
	if err := c.sh.Unpin(cid); err != nil {
		return err
	}
	c.pinned.Remove(cid)
	return nil
}

// IsPinned reports whether cid is currently pinned, per the local
// bookkeeping set (refreshed on every PinAdd/PinRemove).
func (c *Client) IsPinned(cid string) bool {
	return c.pinned.Contains(cid)
}

func isLoopback(endpoint string) bool {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		host = endpoint
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func restartLocalDaemon(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("daemon auto-restart is only supported on linux")
	}
	cmd := exec.CommandContext(ctx, "systemctl", "restart", "ipfs")
	return cmd.Run()
}
