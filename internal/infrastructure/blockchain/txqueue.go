package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("transaction queue closed")

// TxRequest is an unsigned transaction. Nonce and gas price are filled in by the queue.
type TxRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

type txResult struct {
	tx  *types.Transaction
	err error
}

type txJob struct {
	ctx    context.Context
	req    TxRequest
	result chan txResult
}

// TxQueue owns the admin key on one network. A single goroutine fetches the
// nonce, signs and broadcasts, so at most one transaction is in flight.
type TxQueue struct {
	network string
	chainID *big.Int
	client  ChainClient
	signer  *Signer
	logger  *zap.Logger

	jobs      chan *txJob
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTxQueue starts the queue worker
func NewTxQueue(network string, chainID *big.Int, client ChainClient, signer *Signer, logger *zap.Logger) *TxQueue {
	q := &TxQueue{
		network: network,
		chainID: chainID,
		client:  client,
		signer:  signer,
		logger:  logger.With(zap.String("network", network)),
		jobs:    make(chan *txJob),
		done:    make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// Submit enqueues req and blocks until it is broadcast or rejected.
// Once accepted the job runs to completion under ctx.
func (q *TxQueue) Submit(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	job := &txJob{ctx: ctx, req: req, result: make(chan txResult, 1)}

	select {
	case q.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrQueueClosed
	}

	res := <-job.result
	return res.tx, res.err
}

// Close stops the worker after the running job finishes.
func (q *TxQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}

func (q *TxQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			tx, err := q.execute(job.ctx, job.req)
			job.result <- txResult{tx: tx, err: err}
		case <-q.done:
			return
		}
	}
}

func (q *TxQueue) execute(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from := q.signer.Address()
	nonce, err := q.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := q.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	to := req.To
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      req.Gas,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})

	signed, err := q.signer.Sign(tx, q.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := q.client.SendTransaction(ctx, signed); err != nil {
		q.logger.Error("Broadcast failed",
			zap.Uint64("nonce", nonce),
			zap.String("to", to.Hex()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	q.logger.Info("Transaction broadcast",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("to", to.Hex()))

	return signed, nil
}
