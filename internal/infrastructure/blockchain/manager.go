package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"go.uber.org/zap"
)

const (
	NativeTransferGas   uint64 = 21000
	TokenTransferGasCap uint64 = 65000
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var erc20ABI = mustParseABI(erc20TransferABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	ErrSignerNotConfigured = errors.New("admin wallet private key not configured")
	ErrTransactionReverted = errors.New("transaction reverted")
)

// TransferRequest is a payout to a wallet.
type TransferRequest struct {
	Network  string
	Currency string
	To       string
	Amount   decimal.Decimal
}

// TransferResult describes a broadcast payout.
type TransferResult struct {
	TxHash string
	Nonce  uint64
}

type chain struct {
	client ChainClient
	queue  *TxQueue
}

// Manager owns one client and one transaction queue per network.
type Manager struct {
	registry       *Registry
	signer         *Signer
	dial           DialFunc
	waitForReceipt bool
	receiptTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	chains map[string]*chain
}

// NewManager creates a payout manager. signer may be nil, in which case every transfer fails.
func NewManager(cfg config.PayoutConfig, registry *Registry, signer *Signer, dial DialFunc, logger *zap.Logger) *Manager {
	return &Manager{
		registry:       registry,
		signer:         signer,
		dial:           dial,
		waitForReceipt: cfg.WaitForReceipt,
		receiptTimeout: cfg.ReceiptTimeout,
		pollInterval:   2 * time.Second,
		logger:         logger,
		chains:         make(map[string]*chain),
	}
}

// FromAddress is the admin wallet address, empty without a signer.
func (m *Manager) FromAddress() string {
	if m.signer == nil {
		return ""
	}
	return m.signer.Address().Hex()
}

// Validate checks a request without touching the network.
func (m *Manager) Validate(req *TransferRequest) error {
	if _, ok := m.registry.Network(req.Network); !ok {
		return fmt.Errorf("unsupported network: %s", req.Network)
	}
	if strings.TrimSpace(req.To) == "" {
		return errors.New("wallet address is required")
	}
	if !common.IsHexAddress(req.To) {
		return fmt.Errorf("invalid wallet address: %s", req.To)
	}
	if req.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive, got %s", req.Amount.String())
	}
	return nil
}

// Transfer sends a native or token payout and optionally waits for the receipt.
func (m *Manager) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if err := m.Validate(req); err != nil {
		return nil, err
	}
	if m.signer == nil {
		return nil, ErrSignerNotConfigured
	}

	to := common.HexToAddress(req.To)
	var txReq TxRequest
	if IsNative(req.Currency) {
		value, err := ScaleAmount(req.Amount, NativeDecimals)
		if err != nil {
			return nil, err
		}
		txReq = TxRequest{To: to, Value: value, Gas: NativeTransferGas}
	} else {
		contract, err := m.registry.TokenContract(req.Network, req.Currency)
		if err != nil {
			return nil, err
		}
		value, err := ScaleAmount(req.Amount, m.registry.Decimals(req.Currency))
		if err != nil {
			return nil, err
		}
		data, err := erc20ABI.Pack("transfer", to, value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode token transfer: %w", err)
		}
		txReq = TxRequest{To: contract, Value: new(big.Int), Data: data}
	}

	c, err := m.chain(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	if txReq.Gas == 0 {
		txReq.Gas = m.estimateGas(ctx, c.client, txReq, req.Network)
	}

	tx, err := c.queue.Submit(ctx, txReq)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{TxHash: tx.Hash().Hex(), Nonce: tx.Nonce()}
	if m.waitForReceipt {
		err := m.waitMined(ctx, c.client, tx.Hash())
		if errors.Is(err, ErrTransactionReverted) {
			return result, err
		}
		// A broadcast transaction without a receipt yet is still treated as sent
		if err != nil {
			m.logger.Warn("Receipt not available",
				zap.String("network", req.Network),
				zap.String("tx_hash", result.TxHash),
				zap.Error(err))
		}
	}

	return result, nil
}

func (m *Manager) estimateGas(ctx context.Context, client ChainClient, req TxRequest, network string) uint64 {
	to := req.To
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  m.signer.Address(),
		To:    &to,
		Value: req.Value,
		Data:  req.Data,
	})
	if err != nil || gas == 0 {
		m.logger.Warn("Gas estimation failed, using fallback",
			zap.String("network", network),
			zap.Uint64("gas", TokenTransferGasCap),
			zap.Error(err))
		return TokenTransferGasCap
	}
	return gas
}

func (m *Manager) waitMined(ctx context.Context, client ChainClient, hash common.Hash) error {
	timeout := m.receiptTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return ErrTransactionReverted
			}
			return nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			m.logger.Debug("Receipt lookup failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for receipt of %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// chain returns the connected chain for network, dialing it on first use. The
// dial and chain id lookup run outside mu so one slow RPC never blocks other networks.
func (m *Manager) chain(ctx context.Context, network string) (*chain, error) {
	name := strings.ToUpper(network)

	m.mu.Lock()
	c, ok := m.chains[name]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	netCfg, _ := m.registry.Network(name)
	client, err := m.dial(ctx, netCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	chainID := big.NewInt(netCfg.ChainID)
	if netCfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to get chain id for %s: %w", name, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A concurrent first payout may have connected meanwhile; its queue owns the nonce.
	if existing, ok := m.chains[name]; ok {
		client.Close()
		return existing, nil
	}

	c = &chain{
		client: client,
		queue:  NewTxQueue(name, chainID, client, m.signer, m.logger),
	}
	m.chains[name] = c

	m.logger.Info("Connected to network",
		zap.String("network", name),
		zap.String("chain_id", chainID.String()))

	return c, nil
}

// Close stops every queue and closes the clients.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.chains {
		c.queue.Close()
		c.client.Close()
		delete(m.chains, name)
	}
}
