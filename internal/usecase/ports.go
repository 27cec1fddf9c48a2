package usecase

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
)

// ChainTransferer sends payouts from the admin wallet.
type ChainTransferer interface {
	Validate(req *blockchain.TransferRequest) error
	Transfer(ctx context.Context, req *blockchain.TransferRequest) (*blockchain.TransferResult, error)
	FromAddress() string
}

// IDGenerator issues merchant transaction ids.
type IDGenerator interface {
	NextID() string
}

type snowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator creates an IDGenerator for the given node number (0-1023).
func NewSnowflakeGenerator(node int64) (IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &snowflakeGenerator{node: n}, nil
}

func (g *snowflakeGenerator) NextID() string {
	return g.node.Generate().String()
}
