package register

import (
	"context"

	"github.com/veridian-network/veridian-api/internal/tx"
)

// Submitter is the slice of the transaction submitter the workflow needs
type Submitter interface {
	Submit(ctx context.Context, req *tx.Request) (*tx.Outcome, error)
}

// Querier runs read-only contract queries against the registration contract
type Querier interface {
	SmartQuery(ctx context.Context, contract, codeHash string, query, result any) error
}
