// Package heartbeat implements the node's side of the on-chain liveness
// contract: a periodic logCall to the heartbeat contract, and a read of
// the operator count that feeds dispersion.
package heartbeat

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// TestnetInterval and MainnetInterval are the heartbeat cadences, each
// shaved by the 60s safety margin.
const (
	TestnetInterval = 1*time.Hour - 60*time.Second
	MainnetInterval = 12*time.Hour - 60*time.Second
)

// Sender is the chain surface heartbeat needs: a contract call (reading
// the operator count) and a retrying send (recording liveness). Declared
// here, satisfied by *internal/chain.Client, so this package doesn't
// import the chain package directly.
type Sender interface {
	Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error
	Send(ctx context.Context, method string, args ...interface{}) (common.Hash, error)
}

// Beat tracks one network's heartbeat cadence and last-sent timestamp.
type Beat struct {
	network  string
	interval time.Duration
	sender   Sender
	last     *cache.KV // "last" -> unix seconds, persisted at cache/<network>/heartbeat.etny
	log      zerolog.Logger
}

// New opens the heartbeat cache and picks the cadence from cfg.IsTestnet.
func New(cfg types.NetworkConfig, sender Sender, heartbeatFile string, log zerolog.Logger) (*Beat, error) {
	last, err := cache.NewKV(heartbeatFile, 1)
	if err != nil {
		return nil, fmt.Errorf("open heartbeat cache: %w", err)
	}
	interval := MainnetInterval
	if cfg.IsTestnet() {
		interval = TestnetInterval
	}
	return &Beat{
		network:  cfg.Name,
		interval: interval,
		sender:   sender,
		last:     last,
		log:      log.With().Str("component", "heartbeat").Str("network", cfg.Name).Logger(),
	}, nil
}

// MaybeSend calls the heartbeat contract's logCall if Interval has elapsed
// since the last successful call, recording benchmarkResults. now is
// injected so tests don't depend on wall-clock time.
func (b *Beat) MaybeSend(ctx context.Context, now time.Time, benchmarkResults string) error {
	lastStr, _ := b.last.Get("last")
	lastUnix := int64(0)
	if lastStr != "" {
		if _, err := fmt.Sscanf(lastStr, "%d", &lastUnix); err != nil {
			lastUnix = 0
		}
	}

	if now.Unix()-lastUnix < int64(b.interval.Seconds()) {
		return nil
	}

	b.log.Info().Msg("calling heartbeat contract")
	if _, err := b.sender.Send(ctx, "logCall", benchmarkResults); err != nil {
		return fmt.Errorf("heartbeat logCall: %w", err)
	}

	return b.last.Add("last", fmt.Sprintf("%d", now.Unix()))
}

// OperatorCount reads the registered-operator count the heartbeat
// contract maintains; dispersion's D = max(1, floor(N/25)) is computed
// from this value.
func (b *Beat) OperatorCount(ctx context.Context) (int, error) {
	var results []interface{}
	if err := b.sender.Call(ctx, &results, "getActiveOperatorsCount"); err != nil {
		return 0, fmt.Errorf("read operator count: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("getActiveOperatorsCount returned no values")
	}
	n, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("getActiveOperatorsCount returned unexpected type %T", results[0])
	}
	return int(n.Int64()), nil
}
