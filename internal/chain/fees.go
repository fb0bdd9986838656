package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// gasPriceUnits mirrors web3's toWei unit table for the handful of units
// the original node's gas_price_measure field actually uses.
var gasPriceUnits = map[string]int64{
	"wei":   1,
	"gwei":  1_000_000_000,
	"ether": 1_000_000_000_000_000_000,
}

func unitMultiplier(measure string) *big.Int {
	mult, ok := gasPriceUnits[strings.ToLower(measure)]
	if !ok {
		mult = 1
	}
	return big.NewInt(mult)
}

// Fees is the resolved gas pricing for one transaction.
type Fees struct {
	Legacy               bool
	GasPrice             *big.Int // legacy mode
	MaxPriorityFeePerGas *big.Int // EIP-1559 mode
	MaxFeePerGas         *big.Int // EIP-1559 mode
}

// legacyFees computes gasPrice = gas_price · gas_price_measure, the flat
// legacy fee formula.
func legacyFees(cfg types.NetworkConfig) Fees {
	price := new(big.Int).Mul(big.NewInt(cfg.GasPrice), unitMultiplier(cfg.GasPriceMeasure))
	return Fees{Legacy: true, GasPrice: price}
}

// eip1559Fees computes maxFeePerGas = ceil(baseFee · 1.1) + priority, per
// and reports FeeTooHighError if it exceeds the network's
// configured ceiling (cfg.MaxFeePerGas, when non-zero).
func eip1559Fees(cfg types.NetworkConfig, baseFee *big.Int) (Fees, error) {
	priority := big.NewInt(cfg.MaxPriorityFeePerGas)

	// ceil(baseFee*11/10) in integer arithmetic; 1.1 has no exact binary
	// float form, so a float product can land just above a whole number.
	base := new(big.Int).Mul(baseFee, big.NewInt(11))
	base.Add(base, big.NewInt(9))
	base.Div(base, big.NewInt(10))

	maxFee := new(big.Int).Add(base, priority)

	if cfg.MaxFeePerGas > 0 && maxFee.Cmp(big.NewInt(cfg.MaxFeePerGas)) > 0 {
		return Fees{}, &FeeTooHighError{Computed: maxFee.Int64(), Ceiling: cfg.MaxFeePerGas}
	}

	return Fees{
		MaxPriorityFeePerGas: priority,
		MaxFeePerGas:         maxFee,
	}, nil
}

// resolveFees picks EIP-1559 or legacy pricing per cfg.EIP1559, fetching
// the current base fee from the chain when needed.
func (c *Client) resolveFees(ctx context.Context) (Fees, error) {
	if !c.cfg.EIP1559 {
		return legacyFees(c.cfg), nil
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return Fees{}, err
	}
	if head.BaseFee == nil {
		return legacyFees(c.cfg), nil
	}
	return eip1559Fees(c.cfg, head.BaseFee)
}
