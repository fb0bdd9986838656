// Package chain wraps github.com/ethereum/go-ethereum's ethclient/bind into
// the thin, retrying RPC surface the agent needs: call/send/wait/
// decode_events/balance/block_number/nonce, with EIP-1559-or-legacy fee
// selection and per-network inter-call pacing.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/ethernity-cloud/mvp-pox-node/internal/metrics"
	cfgtypes "github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Client is one network's chain connection: a bound contract plus the
// signing key used to submit transactions on its behalf.
type Client struct {
	network string
	cfg     cfgtypes.NetworkConfig

	eth      *ethclient.Client
	contract *bind.BoundContract
	parsed   abi.ABI

	privateKey *ecdsa.PrivateKey
	address    common.Address

	log zerolog.Logger

	nonceMu sync.Mutex
	nonce   uint64
}

// Dial connects to the network's RPC endpoint and binds the contract
// described by abiJSON at cfg.ContractAddress, signing future transactions
// with privateKeyHex.
func Dial(ctx context.Context, network string, cfg cfgtypes.NetworkConfig, abiJSON string, privateKeyHex string, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	contractAddr := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(contractAddr, parsed, eth, eth, eth)

	nonce, err := eth.PendingNonceAt(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("read initial nonce: %w", err)
	}

	return &Client{
		network:    network,
		cfg:        cfg,
		eth:        eth,
		contract:   contract,
		parsed:     parsed,
		privateKey: privateKey,
		address:    address,
		log:        log.With().Str("network", network).Logger(),
		nonce:      nonce,
	}, nil
}

// Address returns the node's signing address for this network.
func (c *Client) Address() common.Address { return c.address }

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

func (c *Client) pace(ctx context.Context) {
	if c.cfg.RPCDelayMS <= 0 {
		return
	}
	select {
	case <-time.After(time.Duration(c.cfg.RPCDelayMS) * time.Millisecond):
	case <-ctx.Done():
	}
}

func (c *Client) observe(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ChainCallsTotal.WithLabelValues(c.network, method, outcome).Inc()
	metrics.ChainCallDuration.WithLabelValues(c.network, method).Observe(time.Since(start).Seconds())
}

// Call invokes a read-only contract method and unpacks its outputs into
// results, following bind.BoundContract's Call pattern.
func (c *Client) Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error {
	c.pace(ctx)
	start := time.Now()
	opts := &bind.CallOpts{Context: ctx, From: c.address}
	err := c.contract.Call(opts, results, method, args...)
	c.observe(method, start, err)
	if err != nil {
		if isLogicRevert(err) {
			return &LogicError{Method: method, Err: err}
		}
		return fmt.Errorf("call %s: %w", method, err)
	}
	return nil
}

// Send builds, signs and submits a transaction calling method with args,
// applying the network's fee policy and the chain-send retry policy: up to
// 20 attempts, 5s fixed delay, re-reading the nonce before each attempt,
// short-circuiting immediately on a contract logic revert.
func (c *Client) Send(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	var txHash common.Hash

	err := retryDo(ctx, func(attempt int) error {
		c.pace(ctx)

		nonce, err := c.eth.PendingNonceAt(ctx, c.address)
		if err != nil {
			return err
		}

		fees, err := c.resolveFees(ctx)
		if err != nil {
			return stopRetry(err)
		}

		opts, err := c.transactOpts(ctx, nonce, fees)
		if err != nil {
			return stopRetry(err)
		}

		start := time.Now()
		tx, err := c.contract.Transact(opts, method, args...)
		c.observe(method, start, err)
		if err != nil {
			if isLogicRevert(err) {
				return stopRetry(&LogicError{Method: method, Err: err})
			}
			return err
		}

		c.nonceMu.Lock()
		c.nonce = nonce + 1
		c.nonceMu.Unlock()

		txHash = tx.Hash()
		return nil
	})

	return txHash, err
}

// Wait blocks until txHash is mined and returns its receipt, polling once
// per block interval since only the hash (not the *types.Transaction) is
// available at this call site.
func (c *Client) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.pace(ctx)
	start := time.Now()
	receipt, err := c.pollReceipt(ctx, txHash)
	c.observe("wait", start, err)
	return receipt, err
}

func (c *Client) pollReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-time.After(c.blockInterval()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) blockInterval() time.Duration {
	if c.cfg.BlockTimeSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.cfg.BlockTimeSeconds) * time.Second
}

// DecodeEvents unpacks every log in receipt matching eventName into a slice
// of field maps.
func (c *Client) DecodeEvents(receipt *types.Receipt, eventName string) ([]map[string]interface{}, error) {
	event, ok := c.parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", eventName)
	}

	var decoded []map[string]interface{}
	for _, vlog := range receipt.Logs {
		if len(vlog.Topics) == 0 || vlog.Topics[0] != event.ID {
			continue
		}
		fields := make(map[string]interface{})
		if err := c.parsed.UnpackIntoMap(fields, eventName, vlog.Data); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", eventName, err)
		}
		decoded = append(decoded, fields)
	}
	return decoded, nil
}

// Balance returns addr's native-token balance at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.pace(ctx)
	start := time.Now()
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	c.observe("balance", start, err)
	return bal, err
}

// BlockNumber returns the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.pace(ctx)
	start := time.Now()
	n, err := c.eth.BlockNumber(ctx)
	c.observe("block_number", start, err)
	return n, err
}

// LatestBlock returns the latest block header.
func (c *Client) LatestBlock(ctx context.Context) (*types.Header, error) {
	c.pace(ctx)
	start := time.Now()
	head, err := c.eth.HeaderByNumber(ctx, nil)
	c.observe("latest_block", start, err)
	return head, err
}

// Nonce returns addr's current transaction count, including pending
// transactions.
func (c *Client) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	c.pace(ctx)
	start := time.Now()
	n, err := c.eth.PendingNonceAt(ctx, addr)
	c.observe("nonce", start, err)
	return n, err
}

func (c *Client) transactOpts(ctx context.Context, nonce uint64, fees Fees) (*bind.TransactOpts, error) {
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.GasLimit = uint64(c.cfg.GasLimit)

	if fees.Legacy {
		opts.GasPrice = fees.GasPrice
	} else {
		opts.GasFeeCap = fees.MaxFeePerGas
		opts.GasTipCap = fees.MaxPriorityFeePerGas
	}
	return opts, nil
}

func isLogicRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "execution reverted")
}
