package heartbeat

import (
	"context"
	"io"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

type fakeSender struct {
	sendCount int
	operators int64
}

func (f *fakeSender) Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error {
	*results = []interface{}{big.NewInt(f.operators)}
	return nil
}

func (f *fakeSender) Send(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	f.sendCount++
	return common.Hash{}, nil
}

func newBeat(t *testing.T, cfg types.NetworkConfig) (*Beat, *fakeSender) {
	sender := &fakeSender{operators: 250}
	b, err := New(cfg, sender, filepath.Join(t.TempDir(), "heartbeat.etny"), zerolog.New(io.Discard))
	require.NoError(t, err)
	return b, sender
}

func TestMaybeSendFirstCallAlwaysFires(t *testing.T) {
	b, sender := newBeat(t, types.NetworkConfig{Name: "polygon_mainnet", NetworkType: "MAINNET"})
	require.NoError(t, b.MaybeSend(context.Background(), time.Unix(1_000_000, 0), "bench"))
	require.Equal(t, 1, sender.sendCount)
}

func TestMaybeSendSkipsWithinInterval(t *testing.T) {
	b, sender := newBeat(t, types.NetworkConfig{Name: "polygon_testnet", NetworkType: "TESTNET"})
	now := time.Unix(1_000_000, 0)
	require.NoError(t, b.MaybeSend(context.Background(), now, "bench"))
	require.Equal(t, 1, sender.sendCount)

	require.NoError(t, b.MaybeSend(context.Background(), now.Add(time.Minute), "bench"))
	require.Equal(t, 1, sender.sendCount, "must not re-fire before the interval elapses")

	require.NoError(t, b.MaybeSend(context.Background(), now.Add(TestnetInterval+time.Second), "bench"))
	require.Equal(t, 2, sender.sendCount)
}

func TestOperatorCount(t *testing.T) {
	b, _ := newBeat(t, types.NetworkConfig{Name: "bloxberg_mainnet", NetworkType: "MAINNET"})
	n, err := b.OperatorCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 250, n)
}

func TestIntervalSelection(t *testing.T) {
	testnet, _ := newBeat(t, types.NetworkConfig{Name: "x_testnet", NetworkType: "TESTNET"})
	require.Equal(t, TestnetInterval, testnet.interval)

	mainnet, _ := newBeat(t, types.NetworkConfig{Name: "x_mainnet", NetworkType: "MAINNET"})
	require.Equal(t, MainnetInterval, mainnet.interval)
}
