package tx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veridian-network/veridian-api/internal/chain"
)

// ErrInsufficientBalance 手续费余额不足，未发生任何广播
var ErrInsufficientBalance = errors.New("insufficient wallet balance for transaction")

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

type Stage string

const (
	// StageBroadcast 在内存池入口被拒，可直接重发
	StageBroadcast Stage = "broadcast"
	// StageExecution 已上链但合约执行回滚，原样重发通常无意义
	StageExecution Stage = "execution"
)

// Request 一次合约调用请求，终态后即丢弃
type Request struct {
	Contract string          `json:"contract"`
	CodeHash string          `json:"code_hash"`
	Msg      json.RawMessage `json:"msg"`
	Sender   string          `json:"sender"` // 为空时使用签名者地址
}

// Outcome is the terminal result of one submission. The submitter never
// retries past this boundary; that decision belongs to the caller.
type Outcome struct {
	Status Status `json:"status"`
	Stage  Stage  `json:"stage,omitempty"` // 仅 Failed 时有意义
	Code   uint32 `json:"code"`
	TxHash string `json:"txhash,omitempty"`
	RawLog string `json:"raw_log,omitempty"`
}

// Policy 提交策略，数值都是可调参数
type Policy struct {
	MinBalance   int64
	FeeDenom     string
	GasLimit     uint64
	GasPrice     string
	PollInterval time.Duration
	MaxAttempts  int
}

// Submitter broadcasts contract calls and polls them to finality
type Submitter struct {
	gateway chain.Gateway
	signer  chain.Signer
	policy  Policy
	logger  *slog.Logger

	// 同一发送者的交易必须串行提交，否则账户序号会相互踩踏
	mu      sync.Mutex
	senders map[string]*sync.Mutex
}

func NewSubmitter(gateway chain.Gateway, signer chain.Signer, policy Policy, logger *slog.Logger) *Submitter {
	if policy.PollInterval <= 0 {
		policy.PollInterval = time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 30
	}
	return &Submitter{
		gateway: gateway,
		signer:  signer,
		policy:  policy,
		logger:  logger,
		senders: make(map[string]*sync.Mutex),
	}
}

func (s *Submitter) senderLock(sender string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.senders[sender]
	if !ok {
		lock = &sync.Mutex{}
		s.senders[sender] = lock
	}
	return lock
}

// Submit builds, signs and broadcasts the request, then polls the gateway
// until the transaction is finalized, failed, or the attempt budget runs out.
func (s *Submitter) Submit(ctx context.Context, req *Request) (*Outcome, error) {
	sender := req.Sender
	if sender == "" {
		sender = s.signer.Address()
	}

	lock := s.senderLock(sender)
	lock.Lock()
	defer lock.Unlock()

	// 1. 余额预检，不够直接失败，避免白白广播
	balance, err := s.gateway.BankBalance(ctx, sender, s.policy.FeeDenom)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee balance: %w", err)
	}
	if balance < s.policy.MinBalance {
		return nil, ErrInsufficientBalance
	}

	// 2. 签名并广播
	signed, err := s.signer.Sign(ctx, &chain.UnsignedTx{
		Sender:   sender,
		Contract: req.Contract,
		CodeHash: req.CodeHash,
		Msg:      req.Msg,
		GasLimit: s.policy.GasLimit,
		FeeDenom: s.policy.FeeDenom,
		GasPrice: s.policy.GasPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	ack, err := s.gateway.BroadcastTx(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	// 3. 广播回执非 0：交易没进内存池，不存在可轮询的对象
	if ack.Code != 0 {
		s.logger.Warn("transaction rejected at broadcast", "code", ack.Code, "raw_log", ack.RawLog)
		return &Outcome{
			Status: StatusFailed,
			Stage:  StageBroadcast,
			Code:   ack.Code,
			TxHash: ack.TxHash,
			RawLog: ack.RawLog,
		}, nil
	}

	s.logger.Debug("transaction broadcast accepted", "txhash", ack.TxHash)

	// 4. 轮询直到查到结果或用完预算。"not found" 是广播后的正常状态，
	// 索引总是落后广播至少一个区块，此时继续等，其他错误立即中止。
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("polling cancelled: %w", ctx.Err())
		case <-time.After(s.policy.PollInterval):
		}

		result, found, err := s.gateway.TxByHash(ctx, ack.TxHash)
		if err != nil {
			return nil, fmt.Errorf("failed to query transaction %s: %w", ack.TxHash, err)
		}
		if !found {
			continue
		}

		if result.Code != 0 {
			s.logger.Warn("transaction failed on-chain", "txhash", ack.TxHash, "code", result.Code)
			return &Outcome{
				Status: StatusFailed,
				Stage:  StageExecution,
				Code:   result.Code,
				TxHash: ack.TxHash,
				RawLog: result.RawLog,
			}, nil
		}

		s.logger.Debug("transaction confirmed", "txhash", ack.TxHash, "attempts", attempt+1)
		return &Outcome{
			Status: StatusConfirmed,
			TxHash: ack.TxHash,
			RawLog: result.RawLog,
		}, nil
	}

	// 超时不代表失败，交易之后仍可能上链，由调用方决定如何处置
	s.logger.Warn("transaction polling timed out", "txhash", ack.TxHash, "attempts", s.policy.MaxAttempts)
	return &Outcome{
		Status: StatusTimedOut,
		TxHash: ack.TxHash,
	}, nil
}
