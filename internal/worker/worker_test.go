package worker

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

type fakeChain struct {
	mu sync.Mutex

	address       common.Address
	dpRequests    map[uint64]types.DPRequest
	doRequests    map[uint64]types.DORequest
	openDOIDs     []uint64
	orders        map[uint64]types.Order
	orderForDP    map[uint64]uint64
	operatorIDs   []uint64
	operatorCount int64
	sends         []string
}

func (f *fakeChain) Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch method {
	case "_getDPRequest":
		*results = []interface{}{f.dpRequests[args[0].(uint64)]}
	case "_getDORequest":
		*results = []interface{}{f.doRequests[args[0].(uint64)]}
	case "getOpenDORequestIds":
		*results = []interface{}{f.openDOIDs}
	case "getOrder":
		*results = []interface{}{f.orders[args[0].(uint64)]}
	case "getOrderIdByDPRequestId":
		*results = []interface{}{f.orderForDP[args[0].(uint64)]}
	case "getDPRequestIdsForOperator":
		*results = []interface{}{f.operatorIDs}
	case "getActiveOperatorsCount":
		*results = []interface{}{big.NewInt(f.operatorCount)}
	}
	return nil
}

func (f *fakeChain) Send(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, method)
	if method == "submitResult" {
		ord := f.orders[args[0].(uint64)]
		ord.Status = types.OrderClosed
		f.orders[args[0].(uint64)] = ord
	}
	return common.Hash{}, nil
}

func (f *fakeChain) Wait(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	return &coretypes.Receipt{Status: 1}, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) { return 1000, nil }
func (f *fakeChain) Address() common.Address                        { return f.address }

type fakeGate struct {
	mu      sync.Mutex
	busyNet string
}

func (g *fakeGate) Busy(network string) bool { return false }
func (g *fakeGate) Stopped() bool            { return false }
func (g *fakeGate) Acquire(ctx context.Context, network string) error {
	g.mu.Lock()
	g.busyNet = network
	g.mu.Unlock()
	return nil
}
func (g *fakeGate) Release(network string) {
	g.mu.Lock()
	g.busyNet = ""
	g.mu.Unlock()
}

type fakeITRunner struct{}

func (fakeITRunner) RunIntegrationTestOnce(ctx context.Context, run func(ctx context.Context) (bool, error)) (bool, error) {
	return run(ctx)
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]map[string]bool
}

func newFakeStore() *fakeStore { return &fakeStore{objects: make(map[string]map[string]bool)} }

func (s *fakeStore) CreateBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[bucket] == nil {
		s.objects[bucket] = make(map[string]bool)
	}
	return nil
}
func (s *fakeStore) UploadFile(ctx context.Context, bucket, objectName, localPath string) error {
	return nil
}
func (s *fakeStore) IsObjectInBucket(ctx context.Context, bucket, objectName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[bucket][objectName], nil
}
func (s *fakeStore) DownloadFile(ctx context.Context, bucket, objectName, localPath string) error {
	return os.WriteFile(localPath, []byte("ok\n"), 0o600)
}
func (s *fakeStore) markReady(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket] = map[string]bool{enclave.ResultFileName: true, enclave.TransactionFileName: true, "context_test.etny": true}
}

type fakeExecutor struct{}

func (fakeExecutor) ResetRegistry(ctx context.Context, job enclave.Job) error { return nil }
func (fakeExecutor) Run(ctx context.Context, job enclave.Job) error          { return nil }
func (fakeExecutor) Stop(ctx context.Context, job enclave.Job) error         { return nil }

type fakeContent struct{}

func (fakeContent) Download(ctx context.Context, cid string) error { return nil }

func newTestWorker(t *testing.T, chain *fakeChain, store *fakeStore) *Worker {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Network: "bloxberg_testnet",
		NetworkConfig: types.NetworkConfig{
			Name:        "bloxberg_testnet",
			NetworkType: types.NetworkTestnet,
			ChainID:     1337,
		},
		Chain:           chain,
		Gate:            &fakeGate{},
		IntegrationTest: fakeITRunner{},
		Store:           store,
		Content:         fakeContent{},
		Executor:        fakeExecutor{},
		Paths:           cache.NewPaths(dir, "bloxberg_testnet"),
		RegistryDir:     filepath.Join(dir, "registry"),
		WorkDir:         filepath.Join(dir, "work"),
		ResultAddress:   "0xresult",
		ResultPrivateKey: "0xkey",
		IntegrationTestJob: enclave.IntegrationTestJob{
			RegistryDir: filepath.Join(dir, "registry"),
			ImageCID:    "itest-cid",
			Bucket:      "etny-integration-test",
		},
		Advertisement: Advertisement{CPU: 4, Memory: 8, Storage: 100, Bandwidth: 1, Duration: 60, Price: big.NewInt(3), UUID: "uuid-1"},
		Log:           zerolog.Nop(),
	}
	w, err := New(cfg)
	require.NoError(t, err)
	return w
}

func TestEnsureDPRequestPostsWhenNoneCached(t *testing.T) {
	chain := &fakeChain{
		address:     common.HexToAddress("0xabc"),
		dpRequests:  map[uint64]types.DPRequest{},
		orders:      map[uint64]types.Order{},
		orderForDP:  map[uint64]uint64{},
		operatorIDs: []uint64{7},
	}
	w := newTestWorker(t, chain, newFakeStore())

	require.NoError(t, w.ensureDPRequest(context.Background()))
	id, ok := w.ownDPRequestID()
	require.True(t, ok)
	require.Equal(t, uint64(7), id)
	require.Contains(t, chain.sends, "postDPRequest")
}

func TestScanOnceMatchesPlacesAndClosesOrder(t *testing.T) {
	chain := &fakeChain{
		address: common.HexToAddress("0xabc"),
		dpRequests: map[uint64]types.DPRequest{
			1: {Request: types.Request{ID: 1, CPU: 4, Memory: 8, Storage: 100, Bandwidth: 1, Price: big.NewInt(1), Status: types.StatusAvailable}},
		},
		doRequests: map[uint64]types.DORequest{
			9: {
				Request: types.Request{ID: 9, CPU: 2, Memory: 4, Storage: 10, Bandwidth: 1, Duration: 60, Price: big.NewInt(3), Status: types.StatusAvailable},
				Metadata: types.Metadata{Spec: "v3:imgcid:imgname:composecid:challengecid:pubkey", PayloadHash: "ipfs:payloadcid", InputHash: ""},
			},
		},
		openDOIDs:     []uint64{9},
		orders:        map[uint64]types.Order{100: {ID: 100, DORequestID: 9, DPRequestID: 1, Status: types.OrderProcessing}},
		orderForDP:    map[uint64]uint64{1: 100},
		operatorCount: 1,
	}
	store := newFakeStore()
	w := newTestWorker(t, chain, store)
	w.resumeAvailable(context.Background(), 1)
	w.mu.Lock()
	w.canRunUnderSGX = true
	w.mu.Unlock()

	store.markReady("etny-order-100")

	require.NoError(t, w.scanOnce(context.Background()))

	require.Contains(t, chain.sends, "placeOrder")
	require.Contains(t, chain.sends, "submitResult")
	require.True(t, w.doreq.Contains("9"))
	require.True(t, w.dpreq.Contains("1"))
	require.Equal(t, 1, len(w.merged.Entries()))
}

func TestScanOnceSkipsPinnedForOtherOperator(t *testing.T) {
	chain := &fakeChain{
		address: common.HexToAddress("0xabc"),
		dpRequests: map[uint64]types.DPRequest{
			1: {Request: types.Request{ID: 1, CPU: 4, Memory: 8, Storage: 100, Bandwidth: 1, Price: big.NewInt(1), Status: types.StatusAvailable}},
		},
		doRequests: map[uint64]types.DORequest{
			9: {
				Request:  types.Request{ID: 9, CPU: 2, Memory: 4, Storage: 10, Bandwidth: 1, Duration: 60, Price: big.NewInt(3), Status: types.StatusAvailable},
				Metadata: types.Metadata{PinnedOperator: "0xsomeoneelse"},
			},
		},
		openDOIDs: []uint64{9},
	}
	w := newTestWorker(t, chain, newFakeStore())
	w.resumeAvailable(context.Background(), 1)

	require.NoError(t, w.scanOnce(context.Background()))
	require.NotContains(t, chain.sends, "placeOrder")
}
