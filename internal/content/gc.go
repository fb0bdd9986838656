package content

import (
	"time"

	"github.com/rs/zerolog"
)

// GCInterval is the weekly cadence GC runs at.
const GCInterval = 7 * 24 * time.Hour

// gcMaxAge is how old an unpinned, non-keep-list CID must be before GC
// removes it.
const gcMaxAge = 7 * 24 * time.Hour

// GC walks the timestamped ledger of cached CIDs, refreshes the pin on
// every "always-keep" CID (the trusted-zone image set plus any compose
// CIDs the caller names), and unpins+removes anything older than one week
// that is not on the keep list.
func (c *Client) GC(keep []string, now time.Time, log zerolog.Logger) {
	keepSet := make(map[string]bool, len(keep))
	for _, cid := range keep {
		keepSet[cid] = true
	}

	for _, cid := range c.ledger.Values() {
		if keepSet[cid] {
			if err := c.PinAdd(cid); err != nil {
				log.Error().Err(err).Str("cid", cid).Msg("GC: failed to refresh keep-list pin")
			}
			continue
		}

		ts, ok := c.ledger.GetTimestamp(cid)
		if !ok {
			continue
		}
		age := now.Sub(time.Unix(ts, 0))
		if age < gcMaxAge {
			continue
		}

		if err := c.PinRemove(cid); err != nil {
			log.Error().Err(err).Str("cid", cid).Msg("GC: failed to unpin stale cid")
			continue
		}
		c.ledger.Remove(cid)
		c.pinned.Remove(cid)
	}
}

// RunGCLoop runs GC on GCInterval until stop is closed. keep is
// re-evaluated on each tick via keepFn so trusted-zone image lists picked
// up from a fresh NetworkConfig are honored.
func (c *Client) RunGCLoop(stop <-chan struct{}, keepFn func() []string, log zerolog.Logger) {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.GC(keepFn(), time.Now(), log)
		case <-stop:
			return
		}
	}
}
