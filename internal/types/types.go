// Package types holds the tagged, named-field views over tuples the chain
// returns, replacing the positional-index access the original contract
// bindings encourage.
package types

import (
	"fmt"
	"math/big"
	"strings"
)

// RequestStatus is the on-chain status of a DP or DO request.
type RequestStatus uint8

const (
	StatusAvailable RequestStatus = iota
	StatusBooked
	StatusCanceled
)

func (s RequestStatus) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusBooked:
		return "Booked"
	case StatusCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("RequestStatus(%d)", uint8(s))
	}
}

// OrderStatus is the on-chain status of an Order.
type OrderStatus uint8

const (
	OrderOpen OrderStatus = iota
	OrderProcessing
	OrderClosed
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "Open"
	case OrderProcessing:
		return "Processing"
	case OrderClosed:
		return "Closed"
	case OrderCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("OrderStatus(%d)", uint8(s))
	}
}

// ResultStatus names the outcome classes an enclave's result.txt can
// report. The core never validates results itself, and no code in this
// repository assigns or reads these values.
type ResultStatus uint8

const (
	ResultSuccess ResultStatus = iota
	ResultSystemError
	ResultKeyError
	ResultSyntaxWarning
	ResultBaseException
	ResultPayloadNotDefined
	ResultPayloadChecksumError
	ResultInputChecksumError
	ResultExecve
)

// Request holds the fields shared between DP and DO requests.
type Request struct {
	ID         uint64
	CPU        uint64
	Memory     uint64
	Storage    uint64
	Bandwidth  uint64
	Duration   uint64
	Price      *big.Int
	Status     RequestStatus
}

// DPRequest is a data-processor request: the operator's advertisement of
// compute capacity.
type DPRequest struct {
	Request
	Operator string
	UUID     string
	Geo      string
}

// DORequest is a data-owner request: a client's advertisement of a task.
type DORequest struct {
	Request
	Owner    string
	Metadata Metadata
}

// Metadata is the 5-tuple attached to a DO request.
type Metadata struct {
	Version        string
	Spec           string
	PayloadHash    string
	InputHash      string
	PinnedOperator string
}

// SpecFields decomposes Metadata.Spec, which has the form
// "v3:<image-cid>:<image-name>:<compose-cid>:<challenge-cid>:<pubkey>".
type SpecFields struct {
	Tag         string
	ImageCID    string
	ImageName   string
	ComposeCID  string
	ChallengeCID string
	PubKey      string
}

// ParseSpec decomposes a v3 spec string.
func ParseSpec(spec string) (SpecFields, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 6 {
		return SpecFields{}, fmt.Errorf("metadata spec %q: expected 6 colon-separated fields, got %d", spec, len(parts))
	}
	return SpecFields{
		Tag:          parts[0],
		ImageCID:     parts[1],
		ImageName:    parts[2],
		ComposeCID:   parts[3],
		ChallengeCID: parts[4],
		PubKey:       parts[5],
	}, nil
}

// HashRef is a "kind:cid" reference, used for payload_hash and input_hash.
type HashRef struct {
	Kind string
	CID  string
}

// ParseHashRef splits a "kind:cid" string.
func ParseHashRef(s string) (HashRef, error) {
	if s == "" {
		return HashRef{}, nil
	}
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return HashRef{}, fmt.Errorf("hash ref %q: expected \"kind:cid\"", s)
	}
	return HashRef{Kind: s[:idx], CID: s[idx+1:]}, nil
}

// Order is the on-chain binding between one DP and one DO request.
type Order struct {
	ID       uint64
	Owner    string
	Operator string
	DORequestID uint64
	DPRequestID uint64
	Status   OrderStatus
}

// FitsResources reports whether the DO request's resource ask fits within
// the DP request's advertised capacity and the DO's offered price meets
// the DP's asking price.
func (do DORequest) FitsResources(dp DPRequest) bool {
	if do.CPU > dp.CPU || do.Memory > dp.Memory || do.Storage > dp.Storage || do.Bandwidth > dp.Bandwidth {
		return false
	}
	if do.Price == nil || dp.Price == nil {
		return false
	}
	return do.Price.Cmp(dp.Price) >= 0
}

// RewardType selects one of the two fee-distribution formulas.
type RewardType uint8

const (
	RewardTypeFlat       RewardType = 1
	RewardTypeNormalized RewardType = 2
)

// NetworkType distinguishes mainnet-shaped dispersion from testnet-shaped
// dispersion.
type NetworkType string

const (
	NetworkMainnet NetworkType = "MAINNET"
	NetworkTestnet NetworkType = "TESTNET"
)

// NetworkConfig is the immutable configuration for one network the node
// operates on. Every field here has a matching CLI flag
// (--<network>-<field>) and environment variable (<NETWORK>_<FIELD>)
// generated by internal/config.
type NetworkConfig struct {
	Name                         string `cfg:"-"`
	NetworkType                  NetworkType `cfg:"network_type"`
	RPCURL                       string      `cfg:"rpc_url"`
	RPCDelayMS                   int         `cfg:"rpc_delay"`
	ChainID                      int64       `cfg:"chain_id"`
	BlockTimeSeconds             int         `cfg:"block_time"`
	ContractAddress              string      `cfg:"contract_address"`
	HeartbeatContractAddress     string      `cfg:"heartbeat_contract_address"`
	ImageRegistryContractAddress string      `cfg:"image_registry_contract_address"`
	TokenName                    string      `cfg:"token_name"`
	GasPriceMeasure              string      `cfg:"gas_price_measure"`
	MinimumGasAtStart            int64       `cfg:"minimum_gas_at_start"`
	TaskExecutionPriceDefault    int64       `cfg:"task_execution_price_default"`
	IntegrationTestImage         string      `cfg:"integration_test_image"`
	TrustedzoneImages            string      `cfg:"trustedzone_images"`
	EIP1559                      bool        `cfg:"eip1559"`
	Middleware                   string      `cfg:"middleware"`
	GasPrice                     int64       `cfg:"gas_price"`
	GasLimit                     int64       `cfg:"gas_limit"`
	MaxPriorityFeePerGas         int64       `cfg:"max_priority_fee_per_gas"`
	MaxFeePerGas                 int64       `cfg:"max_fee_per_gas"`
	RewardType                   RewardType  `cfg:"reward_type"`
	NetworkFeePercent            int64       `cfg:"network_fee"`
	EnclaveFeePercent            int64       `cfg:"enclave_fee"`
}

// IsTestnet reports whether dispersion should use the degenerate D=1
// testnet rule.
func (c NetworkConfig) IsTestnet() bool {
	return c.NetworkType == NetworkTestnet
}

// TrustedzoneImageList splits the comma-separated TrustedzoneImages field.
func (c NetworkConfig) TrustedzoneImageList() []string {
	if c.TrustedzoneImages == "" {
		return nil
	}
	return strings.Split(c.TrustedzoneImages, ",")
}
