package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"go.uber.org/zap"
)

const recipient = "0x2222222222222222222222222222222222222222"

func newTestManager(t *testing.T, chain *fakeChain, cfg config.PayoutConfig) *Manager {
	t.Helper()
	if cfg.Networks == nil {
		cfg.Networks = map[string]config.NetworkConfig{"BSC": {RPCURL: "http://bsc", ChainID: 56}}
	}
	if cfg.TokenContracts == nil {
		cfg.TokenContracts = map[string]map[string]string{"BSC": {"USDT": "0x55d398326f99059fF775485246999027B3197955"}}
	}
	if cfg.TokenDecimals == nil {
		cfg.TokenDecimals = map[string]int32{"USDT": 6}
	}

	dial := func(context.Context, config.NetworkConfig) (ChainClient, error) { return chain, nil }
	m := NewManager(cfg, NewRegistry(cfg), testSigner(t), dial, zap.NewNop())
	m.pollInterval = 5 * time.Millisecond
	t.Cleanup(m.Close)
	return m
}

func TestManager_NativeTransfer(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(t, chain, config.PayoutConfig{})

	result, err := m.Transfer(context.Background(), &TransferRequest{
		Network: "bsc", Currency: "BNB", To: recipient, Amount: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)

	sent := chain.transactions()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, result.TxHash, tx.Hash().Hex())
	assert.Equal(t, NativeTransferGas, tx.Gas())
	assert.Equal(t, "500000000000000000", tx.Value().String())
	assert.Equal(t, common.HexToAddress(recipient), *tx.To())
	assert.Equal(t, int64(56), tx.ChainId().Int64())
}

func TestManager_TokenTransfer(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(t, chain, config.PayoutConfig{})

	_, err := m.Transfer(context.Background(), &TransferRequest{
		Network: "BSC", Currency: "usdt", To: recipient, Amount: decimal.RequireFromString("12.345678"),
	})
	require.NoError(t, err)

	tx := chain.transactions()[0]
	assert.Equal(t, common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), *tx.To())
	assert.Equal(t, uint64(52000), tx.Gas())
	assert.Equal(t, 0, tx.Value().Sign())

	method := erc20ABI.Methods["transfer"]
	assert.Equal(t, method.ID, tx.Data()[:4])
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(recipient), args[0].(common.Address))
	assert.Equal(t, 0, big.NewInt(12345678).Cmp(args[1].(*big.Int)))
}

func TestManager_GasFallback(t *testing.T) {
	chain := newFakeChain()
	chain.estimateErr = errors.New("execution reverted")
	m := newTestManager(t, chain, config.PayoutConfig{})

	_, err := m.Transfer(context.Background(), &TransferRequest{
		Network: "BSC", Currency: "USDT", To: recipient, Amount: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, TokenTransferGasCap, chain.transactions()[0].Gas())
}

func TestManager_Rejections(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(t, chain, config.PayoutConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  TransferRequest
		want string
	}{
		{name: "unsupported network", req: TransferRequest{Network: "SOLANA", Currency: "USDT", To: recipient, Amount: decimal.NewFromInt(1)}, want: "unsupported network"},
		{name: "invalid wallet", req: TransferRequest{Network: "BSC", Currency: "USDT", To: "0x123", Amount: decimal.NewFromInt(1)}, want: "invalid wallet address"},
		{name: "non positive", req: TransferRequest{Network: "BSC", Currency: "USDT", To: recipient, Amount: decimal.Zero}, want: "amount must be positive"},
		{name: "missing contract", req: TransferRequest{Network: "BSC", Currency: "DAI", To: recipient, Amount: decimal.NewFromInt(1)}, want: "token contract not configured"},
		{name: "too precise", req: TransferRequest{Network: "BSC", Currency: "USDT", To: recipient, Amount: decimal.RequireFromString("1.0000001")}, want: "fractional digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := m.Transfer(ctx, &req)
			assert.ErrorContains(t, err, tt.want)
		})
	}
	assert.Empty(t, chain.transactions())
}

func TestManager_RevertedReceipt(t *testing.T) {
	chain := newFakeChain()
	chain.receiptStatus = types.ReceiptStatusFailed
	m := newTestManager(t, chain, config.PayoutConfig{WaitForReceipt: true, ReceiptTimeout: time.Second})

	result, err := m.Transfer(context.Background(), &TransferRequest{
		Network: "BSC", Currency: "BNB", To: recipient, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrTransactionReverted)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.TxHash)
}

func TestManager_NoSigner(t *testing.T) {
	cfg := config.PayoutConfig{Networks: map[string]config.NetworkConfig{"BSC": {RPCURL: "http://bsc"}}}
	m := NewManager(cfg, NewRegistry(cfg), nil, nil, zap.NewNop())

	_, err := m.Transfer(context.Background(), &TransferRequest{
		Network: "BSC", Currency: "BNB", To: recipient, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrSignerNotConfigured)
	assert.Empty(t, m.FromAddress())
}

func TestManager_SlowDialDoesNotBlockOtherNetworks(t *testing.T) {
	ctx := context.Background()
	fast := newFakeChain()
	slow := newFakeChain()
	cfg := config.PayoutConfig{Networks: map[string]config.NetworkConfig{
		"BSC": {RPCURL: "http://bsc", ChainID: 56},
		"ETH": {RPCURL: "http://eth", ChainID: 1},
	}}

	dialing := make(chan struct{})
	unblock := make(chan struct{})
	dial := func(_ context.Context, n config.NetworkConfig) (ChainClient, error) {
		if n.RPCURL == "http://eth" {
			close(dialing)
			<-unblock
			return slow, nil
		}
		return fast, nil
	}
	m := NewManager(cfg, NewRegistry(cfg), testSigner(t), dial, zap.NewNop())
	t.Cleanup(m.Close)

	slowDone := make(chan error, 1)
	go func() {
		_, err := m.Transfer(ctx, &TransferRequest{
			Network: "eth", Currency: "ETH", To: recipient, Amount: decimal.RequireFromString("0.1"),
		})
		slowDone <- err
	}()
	<-dialing

	_, err := m.Transfer(ctx, &TransferRequest{
		Network: "bsc", Currency: "BNB", To: recipient, Amount: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)
	assert.Len(t, fast.transactions(), 1)
	assert.Empty(t, slow.transactions())

	close(unblock)
	require.NoError(t, <-slowDone)
	assert.Len(t, slow.transactions(), 1)
}
