package order

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// TestRewardFlatFormula walks the literal flat-fee scenario: price=3,
// duration=60, network_fee=5%, enclave_fee=10% -> total=180, net=9, enc=18,
// reward=153.00.
func TestRewardFlatFormula(t *testing.T) {
	reward, err := Reward(types.RewardTypeFlat, big.NewInt(3), 60, 5, 10)
	require.NoError(t, err)
	require.Equal(t, 153.00, reward)
}

// TestRewardNormalizedFormula walks the same inputs through the
// normalized formula: base=180*100/115≈156.5217, reward≈156.52.
func TestRewardNormalizedFormula(t *testing.T) {
	reward, err := Reward(types.RewardTypeNormalized, big.NewInt(3), 60, 5, 10)
	require.NoError(t, err)
	require.Equal(t, 156.52, reward)
}

func TestRewardZeroFees(t *testing.T) {
	flat, err := Reward(types.RewardTypeFlat, big.NewInt(10), 100, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1000.0, flat)

	norm, err := Reward(types.RewardTypeNormalized, big.NewInt(10), 100, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1000.0, norm)
}

func TestRewardNilPrice(t *testing.T) {
	_, err := Reward(types.RewardTypeFlat, nil, 60, 5, 10)
	require.Error(t, err)
}

func TestRewardUnknownType(t *testing.T) {
	_, err := Reward(types.RewardType(9), big.NewInt(3), 60, 5, 10)
	require.Error(t, err)
}
