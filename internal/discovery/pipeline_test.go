package discovery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

type fakeChain struct {
	dpRequestIDs []uint64
	dpRequests   map[uint64]types.DPRequest
	orderForDP   map[uint64]uint64
	orders       map[uint64]types.Order
}

func (f *fakeChain) Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error {
	switch method {
	case "getDPRequestIdsForOperator":
		*results = []interface{}{f.dpRequestIDs}
	case "_getDPRequest":
		id := args[0].(uint64)
		*results = []interface{}{f.dpRequests[id]}
	case "getOrderIdByDPRequestId":
		id := args[0].(uint64)
		*results = []interface{}{f.orderForDP[id]}
	case "getOrder":
		id := args[0].(uint64)
		*results = []interface{}{f.orders[id]}
	}
	return nil
}

func newTestPipeline(t *testing.T, chain Chain, hooks Hooks) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	orders, err := cache.NewKV(filepath.Join(dir, "orders_cache.txt"), 0)
	require.NoError(t, err)
	dpreq, err := cache.NewSet(filepath.Join(dir, "dpreq_cache.txt"), 0)
	require.NoError(t, err)
	doreq, err := cache.NewSet(filepath.Join(dir, "doreq_cache.txt"), 0)
	require.NoError(t, err)

	return New("bloxberg_testnet", "0xme", "uuid-me", chain, orders, dpreq, doreq, nil, hooks, zerolog.Nop())
}

func TestReconcileHistoricalDPsCachesCanceledAndForeignUUID(t *testing.T) {
	chain := &fakeChain{
		dpRequestIDs: []uint64{1, 2},
		dpRequests: map[uint64]types.DPRequest{
			1: {Request: types.Request{ID: 1, Status: types.StatusCanceled}, UUID: "uuid-me"},
			2: {Request: types.Request{ID: 2, Status: types.StatusAvailable}, UUID: "uuid-other"},
		},
	}
	p := newTestPipeline(t, chain, Hooks{})

	require.NoError(t, p.ReconcileHistoricalDPs(context.Background()))

	require.True(t, p.dpreq.Contains("1"))
	require.True(t, p.dpreq.Contains("2"))
	counts := p.DPRequestCounts()
	require.Equal(t, 1, counts["canceled"])
	require.Equal(t, 1, counts["foreign_uuid"])
}

func TestReconcileHistoricalDPsCachesClosedBookedOrderAndDefersOpen(t *testing.T) {
	chain := &fakeChain{
		dpRequestIDs: []uint64{10, 11},
		dpRequests: map[uint64]types.DPRequest{
			10: {Request: types.Request{ID: 10, Status: types.StatusBooked}, UUID: "uuid-me"},
			11: {Request: types.Request{ID: 11, Status: types.StatusBooked}, UUID: "uuid-me"},
		},
		orderForDP: map[uint64]uint64{10: 100, 11: 101},
		orders: map[uint64]types.Order{
			100: {ID: 100, Status: types.OrderClosed},
			101: {ID: 101, Status: types.OrderProcessing},
		},
	}
	p := newTestPipeline(t, chain, Hooks{})

	require.NoError(t, p.ReconcileHistoricalDPs(context.Background()))

	require.True(t, p.dpreq.Contains("10"), "closed order's dp request must be cached terminal")
	require.False(t, p.dpreq.Contains("11"), "still-processing order's dp request must be left for stage 2")
}

func TestResumeBookedDPsInvokesHookForOpenOrders(t *testing.T) {
	chain := &fakeChain{
		dpRequestIDs: []uint64{11},
		dpRequests: map[uint64]types.DPRequest{
			11: {Request: types.Request{ID: 11, Status: types.StatusBooked}, UUID: "uuid-me"},
		},
		orderForDP: map[uint64]uint64{11: 101},
	}

	var resumed []uint64
	hooks := Hooks{
		ResumeBooked: func(ctx context.Context, dpRequestID, orderID uint64) error {
			resumed = append(resumed, dpRequestID, orderID)
			return nil
		},
	}
	p := newTestPipeline(t, chain, hooks)

	require.NoError(t, p.ResumeBookedDPs(context.Background()))
	require.Equal(t, []uint64{11, 101}, resumed)
}

func TestResumeAvailableDPsInvokesHookForAvailableOnly(t *testing.T) {
	chain := &fakeChain{
		dpRequestIDs: []uint64{20, 21},
		dpRequests: map[uint64]types.DPRequest{
			20: {Request: types.Request{ID: 20, Status: types.StatusAvailable}, UUID: "uuid-me"},
			21: {Request: types.Request{ID: 21, Status: types.StatusBooked}, UUID: "uuid-me"},
		},
	}

	var resumed []uint64
	hooks := Hooks{
		ResumeAvailable: func(ctx context.Context, dpRequestID uint64) error {
			resumed = append(resumed, dpRequestID)
			return nil
		},
	}
	p := newTestPipeline(t, chain, hooks)

	require.NoError(t, p.ResumeAvailableDPs(context.Background()))
	require.Equal(t, []uint64{20}, resumed)
}

func TestRunStopsBetweenStagesWhenStopped(t *testing.T) {
	chain := &fakeChain{dpRequestIDs: []uint64{}}
	stopped := true
	hooks := Hooks{Stopped: func() bool { return stopped }}
	p := newTestPipeline(t, chain, hooks)

	require.NoError(t, p.Run(context.Background()))
}
