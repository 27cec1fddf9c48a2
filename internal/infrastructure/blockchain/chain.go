package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ChainClient is the subset of the JSON-RPC API used for payouts.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// DialFunc opens a client for a network.
type DialFunc func(ctx context.Context, network config.NetworkConfig) (ChainClient, error)

// NewDialer returns a DialFunc that connects over instrumented HTTP with the given timeout.
func NewDialer(timeout time.Duration) DialFunc {
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return func(ctx context.Context, network config.NetworkConfig) (ChainClient, error) {
		rpcClient, err := rpc.DialOptions(ctx, network.RPCURL, rpc.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("failed to dial rpc: %w", err)
		}
		return ethclient.NewClient(rpcClient), nil
	}
}
