// Package dispersion implements the block-aligned deterministic slot rule
// that keeps at most one operator, among the eligible set, trying to
// place an order for a given DO on any one block. Without it every
// matching operator would race to place the same order and waste gas on
// losers.
package dispersion

import "github.com/ethernity-cloud/mvp-pox-node/internal/types"

// MinOperatorsForFullFactor is the N below which D degenerates to 1 — at
// that point there are too few operators for rotation to matter.
const MinOperatorsForFullFactor = 25

// Factor computes D = max(1, floor(N/25)) on production networks, or 1
// unconditionally on testnets.
func Factor(n int, testnet bool) int {
	if testnet {
		return 1
	}
	d := n / MinOperatorsForFullFactor
	if d < 1 {
		return 1
	}
	return d
}

// mod normalizes Go's sign-of-dividend `%` into the mathematical
// nonnegative modulo the scheduling formulas assume.
func mod(a, d int) int {
	m := a % d
	if m < 0 {
		m += d
	}
	return m
}

// OffsetMod computes (B + dp) mod D.
func OffsetMod(block uint64, dp uint64, d int) int {
	return mod(int(block%uint64(d))+int(dp%uint64(d)), d)
}

// DoMod computes do mod D.
func DoMod(do uint64, d int) int {
	return int(do % uint64(d))
}

// Decision is the outcome of evaluating one DO's slot against the
// current block.
type Decision struct {
	// Eligible reports whether the node should place the order now.
	Eligible bool
	// WaitBlocks is how many blocks to wait before re-evaluating, valid
	// only when Eligible is false.
	WaitBlocks int
	// FirstCycle is the updated first-cycle state to persist for this DO
	// id; callers must store it and pass it back on the next evaluation.
	FirstCycle bool
}

// Evaluate implements the four scheduling cases against one DO's current
// offsetMod/doMod pair and its previously observed first-cycle state.
func Evaluate(offsetMod, doMod, d int, firstCycle bool) Decision {
	switch {
	case offsetMod == doMod:
		return Decision{Eligible: true, FirstCycle: firstCycle}
	case offsetMod < doMod:
		return Decision{Eligible: false, WaitBlocks: doMod - offsetMod, FirstCycle: firstCycle}
	case firstCycle:
		// Crossing this DO's slot for the first time: wait into the next
		// cycle rather than racing now.
		return Decision{Eligible: false, WaitBlocks: mod(doMod-offsetMod, d), FirstCycle: false}
	default:
		// Not first cycle: we already missed this DO's coordinated slot
		// once, so keep trying every block until the race resolves.
		return Decision{Eligible: true, FirstCycle: false}
	}
}

// EvaluateDO is the entry point the dispatch loop calls: given the
// current block, this node's own DP id, a candidate DO id, the network's
// operator count and testnet flag, and the DO's previously observed
// first-cycle state, decide whether to place an order now.
func EvaluateDO(block, dp, do uint64, operatorCount int, testnet bool, firstCycle bool) Decision {
	d := Factor(operatorCount, testnet)
	return Evaluate(OffsetMod(block, dp, d), DoMod(do, d), d, firstCycle)
}

// PinnedForOther reports whether do is pinned to a different operator,
// which puts it permanently out of consideration for this node.
func PinnedForOther(do types.DORequest, ownAddress string) bool {
	pinned := do.Metadata.PinnedOperator
	return pinned != "" && pinned != ownAddress
}

// SkipsDispersionCheck reports whether do is pinned to this node, in
// which case the dispersion slot rule doesn't apply at all.
func SkipsDispersionCheck(do types.DORequest, ownAddress string) bool {
	return do.Metadata.PinnedOperator != "" && do.Metadata.PinnedOperator == ownAddress
}

// FitsResourceFilter applies the resource filter: only DOs whose ask fits
// within the DP's advertised capacity and price floor are considered.
func FitsResourceFilter(do types.DORequest, dp types.DPRequest) bool {
	return do.FitsResources(dp)
}
