package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeChain struct {
	mu          sync.Mutex
	sent        []*types.Transaction
	inFlight    int
	maxInFlight int

	chainID       *big.Int
	estimate      uint64
	estimateErr   error
	sendErr       error
	receiptStatus uint64
	closed        bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{chainID: big.NewInt(97), estimate: 52000, receiptStatus: types.ReceiptStatusSuccessful}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(3_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	// widen the window in which a second sender could interleave
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: f.receiptStatus, TxHash: hash}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) Close() { f.closed = true }

func (f *fakeChain) transactions() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

var errBroadcast = errors.New("insufficient funds for gas")
