package chain

import (
	"context"
	"encoding/json"
)

// Gateway defines read/write access to the ledger
type Gateway interface {
	// SmartQuery queries a contract's state and decodes the JSON reply into result
	SmartQuery(ctx context.Context, contract, codeHash string, query any, result any) error

	// BankBalance retrieves the spendable balance for an address in base units
	BankBalance(ctx context.Context, address, denom string) (int64, error)

	// BroadcastTx submits a signed transaction to the mempool
	BroadcastTx(ctx context.Context, signedTx []byte) (*BroadcastAck, error)

	// TxByHash fetches a transaction's finalized result. found=false with a
	// nil error means the transaction is not indexed yet, which is the normal
	// state right after broadcast and must not be treated as a failure.
	TxByHash(ctx context.Context, hash string) (res *TxResult, found bool, err error)
}

// Signer abstracts transaction signing; key management lives outside this process
type Signer interface {
	// Address returns the sender address the signer controls
	Address() string

	// Sign produces signed transaction bytes ready for broadcast
	Sign(ctx context.Context, tx *UnsignedTx) ([]byte, error)
}

// BroadcastAck 广播回执。Code 非 0 说明交易没进内存池，不会有后续轮询
type BroadcastAck struct {
	Code   uint32 `json:"code"`
	TxHash string `json:"txhash"`
	RawLog string `json:"raw_log"`
}

// TxResult 链上执行结果。Code 非 0 表示合约执行回滚
type TxResult struct {
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
}

// UnsignedTx 待签名的合约调用
type UnsignedTx struct {
	Sender   string          `json:"sender"`
	Contract string          `json:"contract"`
	CodeHash string          `json:"code_hash"`
	Msg      json.RawMessage `json:"msg"`
	GasLimit uint64          `json:"gas_limit"`
	FeeDenom string          `json:"fee_denom"`
	GasPrice string          `json:"gas_price"`
	Memo     string          `json:"memo"`
}
