// Package worker runs one network's control loop: reconcile history at
// boot, then cycle discovery, dispatch, and the order lifecycle until the
// process is asked to stop. It imports internal/cache,
// internal/discovery, internal/dispersion, internal/enclave,
// internal/heartbeat and internal/order together, and reaches the chain
// and content clients only through its local Chain and ContentClient
// interfaces.
package worker

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/discovery"
	"github.com/ethernity-cloud/mvp-pox-node/internal/dispersion"
	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/events"
	"github.com/ethernity-cloud/mvp-pox-node/internal/heartbeat"
	"github.com/ethernity-cloud/mvp-pox-node/internal/order"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Chain is the full chain surface the worker needs, satisfied by
// *internal/chain.Client. It is a union of order.Caller,
// discovery.Chain, dispersion.BlockSource and heartbeat.Sender so those
// packages never need to know about each other.
type Chain interface {
	Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error
	Send(ctx context.Context, method string, args ...interface{}) (common.Hash, error)
	Wait(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Address() common.Address
}

// Gate is the supervisor surface the worker needs: dispersion's cadence
// and cancellation checks, plus the ability to actually hold the task
// mutex around an order-producing action.
type Gate interface {
	dispersion.TaskGate
	Acquire(ctx context.Context, network string) error
	Release(network string)
}

// IntegrationTestRunner runs the once-per-process SGX capability probe.
type IntegrationTestRunner interface {
	RunIntegrationTestOnce(ctx context.Context, run func(ctx context.Context) (bool, error)) (bool, error)
}

// ContentClient is the content-store surface the worker needs to fetch a
// DO request's payload/input before handing them to the enclave.
type ContentClient interface {
	Download(ctx context.Context, cid string) error
}

// Advertisement is what this node offers on this network: the DP
// request's resource/price terms and its install UUID.
type Advertisement struct {
	CPU, Memory, Storage, Bandwidth, Duration uint64
	Price                                     *big.Int
	UUID                                      string
}

// Config wires one network's collaborators into a Worker.
type Config struct {
	Network       string
	NetworkConfig types.NetworkConfig

	Chain           Chain
	Gate            Gate
	IntegrationTest IntegrationTestRunner
	Store           enclave.Store
	Content         ContentClient
	Executor        enclave.Executor

	Paths       cache.Paths
	RegistryDir string
	WorkDir     string

	ResultAddress      string
	ResultPrivateKey   string
	IntegrationTestJob enclave.IntegrationTestJob

	Advertisement Advertisement

	Broker *events.Broker
	Log    zerolog.Logger
}

// Worker runs Config.Network's control loop.
type Worker struct {
	cfg Config
	log zerolog.Logger

	orders  *cache.KV
	dpreq   *cache.Set
	doreq   *cache.Set
	merged  *cache.AppendList
	retries *order.RetryLedger
	beat    *heartbeat.Beat

	pipeline *discovery.Pipeline
	scanner  *dispersion.Scanner

	mu             sync.Mutex
	dpRequestID    uint64
	dpRequestKnown bool
	canRunUnderSGX bool
}

// New opens cfg's on-disk caches and builds the discovery pipeline and
// dispatch scanner over cfg's chain connection.
func New(cfg Config) (*Worker, error) {
	orders, err := cache.NewKV(cfg.Paths.OrdersCacheFile(), 0)
	if err != nil {
		return nil, fmt.Errorf("open orders cache: %w", err)
	}
	dpreq, err := cache.NewSet(cfg.Paths.DPReqCacheFile(), 0)
	if err != nil {
		return nil, fmt.Errorf("open dp request cache: %w", err)
	}
	doreq, err := cache.NewSet(cfg.Paths.DOReqCacheFile(), 0)
	if err != nil {
		return nil, fmt.Errorf("open do request cache: %w", err)
	}
	merged, err := cache.NewAppendList(cfg.Paths.MergedOrdersCacheFile(), 0)
	if err != nil {
		return nil, fmt.Errorf("open merged orders cache: %w", err)
	}
	retries, err := order.OpenRetryLedger(cfg.Paths.ProcessOrderDataFile())
	if err != nil {
		return nil, fmt.Errorf("open retry ledger: %w", err)
	}
	beat, err := heartbeat.New(cfg.NetworkConfig, cfg.Chain, cfg.Paths.HeartbeatFile(), cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("open heartbeat: %w", err)
	}

	log := cfg.Log.With().Str("component", "worker").Str("network", cfg.Network).Logger()
	w := &Worker{
		cfg:     cfg,
		log:     log,
		orders:  orders,
		dpreq:   dpreq,
		doreq:   doreq,
		merged:  merged,
		retries: retries,
		beat:    beat,
	}

	w.pipeline = discovery.New(cfg.Network, cfg.Chain.Address().Hex(), cfg.Advertisement.UUID, cfg.Chain, orders, dpreq, doreq, cfg.Broker, discovery.Hooks{
		ResumeBooked:    w.resumeBooked,
		ResumeAvailable: w.resumeAvailable,
		Heartbeat:       w.sendHeartbeatIfDue,
		Stopped:         cfg.Gate.Stopped,
	}, log)

	w.scanner = dispersion.NewScanner(cfg.Network, blockDuration(cfg.NetworkConfig), cfg.Chain, cfg.Gate, log)

	return w, nil
}

// Pipeline exposes the discovery pipeline so the process can register it
// as a metrics.Source.
func (w *Worker) Pipeline() *discovery.Pipeline { return w.pipeline }
