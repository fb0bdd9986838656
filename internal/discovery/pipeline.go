// Package discovery implements the three-pass reconciliation the worker
// runs over its own DP request history at boot and on every steady-state
// cycle: cache what is already terminal, resume orders still in flight,
// and re-attempt dispatch for requests that were posted but never
// matched. It is the connective tissue between the persistent cache
// layer, the chain client and the order lifecycle, without depending on
// any of their concrete implementations directly.
package discovery

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/events"
	"github.com/ethernity-cloud/mvp-pox-node/internal/order"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Chain is the read-only contract surface the pipeline needs. It has the
// same shape as order.Caller, so order.GetOrder works directly against
// it without this package importing internal/chain.
type Chain interface {
	Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error
}

// Hooks are the worker-owned actions the pipeline triggers once it has
// classified a DP request; the pipeline itself never drives an order
// lifecycle or a dispatch scan, it only decides when to.
type Hooks struct {
	// ResumeBooked runs the order lifecycle (from its Processing state)
	// for a DP request that is Booked but not yet terminally cached.
	ResumeBooked func(ctx context.Context, dpRequestID, orderID uint64) error
	// ResumeAvailable runs the dispatch loop for a DP request that was
	// posted but never matched before the last crash/restart.
	ResumeAvailable func(ctx context.Context, dpRequestID uint64) error
	// Heartbeat is called once per classified DP request, mirroring the
	// steady heartbeat cadence a long reconciliation pass must not block.
	Heartbeat func(ctx context.Context) error
	// Stopped reports the supervisor's cooperative-cancellation flag.
	Stopped func() bool
}

// Pipeline holds one network's discovery state: the terminally-processed
// DP/DO id sets, the dp_req_id -> order_id map, and the chain surface
// used to classify DP requests the node hasn't seen before.
type Pipeline struct {
	network    string
	ownAddress string
	ownUUID    string

	chain  Chain
	hooks  Hooks
	orders *cache.KV
	dpreq  *cache.Set
	doreq  *cache.Set
	broker *events.Broker

	log zerolog.Logger

	mu       sync.Mutex
	dpCounts map[string]int
}

// New builds a Pipeline for one network. orders backs the dp_req_id ->
// order_id cache (internal/cache.Paths.OrdersCacheFile), dpreq/doreq back
// the terminally-processed id sets (DPReqCacheFile/DOReqCacheFile).
func New(network, ownAddress, ownUUID string, chain Chain, orders *cache.KV, dpreq, doreq *cache.Set, broker *events.Broker, hooks Hooks, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		network:    network,
		ownAddress: ownAddress,
		ownUUID:    ownUUID,
		chain:      chain,
		hooks:      hooks,
		orders:     orders,
		dpreq:      dpreq,
		doreq:      doreq,
		broker:     broker,
		log:        log.With().Str("component", "discovery").Str("network", network).Logger(),
		dpCounts:   make(map[string]int),
	}
}

// Network satisfies internal/metrics.Source.
func (p *Pipeline) Network() string { return p.network }

// DPRequestCounts satisfies internal/metrics.Source: a snapshot of how
// many DP requests were classified into each terminal/non-terminal
// bucket during the pipeline's last run.
func (p *Pipeline) DPRequestCounts() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.dpCounts))
	for k, v := range p.dpCounts {
		out[k] = v
	}
	return out
}

// DORequestCounts satisfies internal/metrics.Source. The pipeline does
// not itself scan the DO request space (that is the dispatch loop's
// job, in internal/dispersion), so it always reports empty; no other
// Source reports DO request counts to the collector.
func (p *Pipeline) DORequestCounts() map[string]int { return map[string]int{} }

func (p *Pipeline) bumpCount(bucket string) {
	p.mu.Lock()
	p.dpCounts[bucket]++
	p.mu.Unlock()
}

func (p *Pipeline) publish(eventType events.EventType, stage string) {
	if p.broker == nil {
		return
	}
	p.broker.Publish(&events.Event{
		Type:     eventType,
		Network:  p.network,
		Message:  "discovery pass completed",
		Metadata: map[string]string{"stage": stage},
	})
}

func (p *Pipeline) stopped() bool {
	return p.hooks.Stopped != nil && p.hooks.Stopped()
}

func (p *Pipeline) heartbeat(ctx context.Context) {
	if p.hooks.Heartbeat == nil {
		return
	}
	if err := p.hooks.Heartbeat(ctx); err != nil {
		p.log.Warn().Err(err).Msg("heartbeat emitter failed during discovery pass")
	}
}

// markTerminal caches dpRequestID as never-to-be-revisited and records it
// under bucket for the metrics snapshot.
func (p *Pipeline) markTerminal(dpRequestID uint64, bucket string) {
	id := strconv.FormatUint(dpRequestID, 10)
	if err := p.dpreq.Add(id); err != nil {
		p.log.Warn().Err(err).Uint64("dp_request_id", dpRequestID).Msg("failed to persist terminal dp request")
	}
	p.bumpCount(bucket)
}

// rememberOrder records the dp_req_id -> order_id mapping so a future
// pass doesn't need to ask the chain for it again.
func (p *Pipeline) rememberOrder(dpRequestID, orderID uint64) {
	key := strconv.FormatUint(dpRequestID, 10)
	if err := p.orders.Add(key, strconv.FormatUint(orderID, 10)); err != nil {
		p.log.Warn().Err(err).Uint64("dp_request_id", dpRequestID).Msg("failed to persist order mapping")
	}
}

// cachedOrderID returns the order id previously recorded for
// dpRequestID, if any.
func (p *Pipeline) cachedOrderID(dpRequestID uint64) (uint64, bool) {
	v, ok := p.orders.Get(strconv.FormatUint(dpRequestID, 10))
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolveOrderID returns the order id associated with a Booked DP
// request, consulting the local cache first and falling back to a chain
// read (a booked DP request always has exactly one order against it, but
// this process may not have observed the placement itself, e.g. after
// restoring from a stale cache).
func (p *Pipeline) resolveOrderID(ctx context.Context, dpRequestID uint64) (uint64, error) {
	if id, ok := p.cachedOrderID(dpRequestID); ok {
		return id, nil
	}

	var results []interface{}
	if err := p.chain.Call(ctx, &results, "getOrderIdByDPRequestId", dpRequestID); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, errEmptyResponse("getOrderIdByDPRequestId")
	}
	orderID, ok := results[0].(uint64)
	if !ok {
		return 0, errUnexpectedShape("getOrderIdByDPRequestId", results[0])
	}
	p.rememberOrder(dpRequestID, orderID)
	return orderID, nil
}

// getOrder is order.GetOrder bound to this pipeline's chain, exposed so
// stages.go reads as a method without re-importing the order package at
// every call site.
func (p *Pipeline) getOrder(ctx context.Context, orderID uint64) (types.Order, error) {
	return order.GetOrder(ctx, p.chain, orderID)
}
