package order

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Reward computes the operator's payout for a closed order under one of
// the two fee-distribution formulas, rounded to 2 decimal places the way
// the chain-facing report expects.
func Reward(rewardType types.RewardType, price *big.Int, durationSeconds uint64, networkFeePercent, enclaveFeePercent int64) (float64, error) {
	if price == nil {
		return 0, fmt.Errorf("reward: price is nil")
	}

	total := float64(price.Int64()) * float64(durationSeconds)

	switch rewardType {
	case types.RewardTypeFlat:
		net := total * float64(networkFeePercent) / 100
		enc := total * float64(enclaveFeePercent) / 100
		return round2(total - net - enc), nil

	case types.RewardTypeNormalized:
		base := total * 100 / (100 + float64(networkFeePercent) + float64(enclaveFeePercent))
		net := base * float64(networkFeePercent) / 100
		enc := base * float64(enclaveFeePercent) / 100
		return round2(total - net - enc), nil

	default:
		return 0, fmt.Errorf("reward: unknown reward type %d", rewardType)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
