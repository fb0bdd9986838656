package dispersion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// clampSleep handles the degenerate-config case: a negative scan sleep is
// clamped to zero rather than panicking or spinning.
func clampSleep(blockTime time.Duration) time.Duration {
	d := blockTime - 1300*time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// BlockSource is the chain surface the scan loop needs.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// TaskGate lets the scan loop cooperate with the supervisor's task mutex
// and cooperative-cancellation flag without importing internal/supervisor
// directly.
type TaskGate interface {
	// Busy reports whether another network currently holds the task
	// mutex; the scan loop yields immediately when true.
	Busy(network string) bool
	// Stopped reports whether the supervisor has raised stop_event.
	Stopped() bool
}

// Scanner runs the block-aligned dispatch scan for one network, tracking
// per-DO first-cycle state across calls.
type Scanner struct {
	network    string
	blockTime  time.Duration
	blocks     BlockSource
	gate       TaskGate
	log        zerolog.Logger

	mu         sync.Mutex
	firstCycle map[uint64]bool
}

// NewScanner builds a Scanner for network.
func NewScanner(network string, blockTime time.Duration, blocks BlockSource, gate TaskGate, log zerolog.Logger) *Scanner {
	return &Scanner{
		network:    network,
		blockTime:  blockTime,
		blocks:     blocks,
		gate:       gate,
		log:        log.With().Str("component", "dispersion.scan").Str("network", network).Logger(),
		firstCycle: make(map[uint64]bool),
	}
}

// firstCycleFor returns the persisted first-cycle state for do, defaulting
// to true on first observation.
func (s *Scanner) firstCycleFor(do uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.firstCycle[do]
	if !ok {
		return true
	}
	return fc
}

func (s *Scanner) setFirstCycle(do uint64, fc bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstCycle[do] = fc
}

// Evaluate decides whether dp is eligible to place an order against do at
// the current block, persisting do's first-cycle state for the next call.
func (s *Scanner) Evaluate(ctx context.Context, dp, do uint64, operatorCount int, testnet bool) (Decision, error) {
	block, err := s.blocks.BlockNumber(ctx)
	if err != nil {
		return Decision{}, err
	}
	decision := EvaluateDO(block, dp, do, operatorCount, testnet, s.firstCycleFor(do))
	s.setFirstCycle(do, decision.FirstCycle)
	return decision, nil
}

// Run repeatedly invokes scanOnce at the block_time-1.3s cadence until ctx
// is cancelled or the gate's stop flag is set. Passes are skipped entirely
// while another network holds the task mutex.
func (s *Scanner) Run(ctx context.Context, scanOnce func(ctx context.Context) error) {
	for {
		if s.gate.Stopped() {
			return
		}
		if s.gate.Busy(s.network) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := scanOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("dispatch scan pass failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(clampSleep(s.blockTime)):
		}
	}
}
