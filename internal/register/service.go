package register

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veridian-network/veridian-api/internal/ai"
	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/tx"
)

// Request 一次注册申请，图片为去掉 data-URL 前缀的 base64
type Request struct {
	Address     string
	IDImage     string
	SelfieImage string
	Affiliate   string
}

// Result is returned on a confirmed or timed-out registration. A timed-out
// outcome means the transaction may still land on chain later.
type Result struct {
	IDHash   string
	Identity *models.Identity
	Outcome  *tx.Outcome
}

// Service runs the registration workflow: verify the document, hash the
// identity, reject duplicates, then submit the on-chain registration.
type Service struct {
	verifier  ai.Verifier
	querier   Querier
	submitter Submitter
	cfg       *configs.Config
	logger    *slog.Logger
}

func NewService(verifier ai.Verifier, querier Querier, submitter Submitter, cfg *configs.Config, logger *slog.Logger) *Service {
	return &Service{
		verifier:  verifier,
		querier:   querier,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
	}
}

type registrationStatusResponse struct {
	RegistrationStatus bool `json:"registration_status"`
}

// Register drives one application end to end. The identity never leaves this
// process: only its hash goes on chain.
func (s *Service) Register(ctx context.Context, req *Request) (*Result, error) {
	req.IDImage = stripDataURL(req.IDImage)
	req.SelfieImage = stripDataURL(req.SelfieImage)
	if err := validate(req); err != nil {
		return nil, err
	}

	// 1. AI 核验证件（带自拍时一并比对人脸）
	verdict, err := s.verifier.VerifyIdentity(ctx, req.IDImage, req.SelfieImage)
	if err != nil {
		return nil, fmt.Errorf("identity verification failed: %w", err)
	}
	if !verdict.Success {
		reason := verdict.FailureReason
		if verdict.IsFake && reason == "" {
			reason = "document appears to be forged"
		}
		return nil, &VerificationRejectedError{Reason: reason}
	}
	if req.SelfieImage != "" && verdict.SelfieMatch != nil && !*verdict.SelfieMatch {
		return nil, &VerificationRejectedError{Reason: verdict.SelfieMatchReason}
	}

	idHash := IdentityHash(verdict.Identity)

	// 2. 同一证件只能注册一次
	var status registrationStatusResponse
	query := map[string]any{
		"query_registration_status_by_id_hash": map[string]any{"id_hash": idHash},
	}
	if err := s.querier.SmartQuery(ctx, s.cfg.Chain.RegistrationContract, s.cfg.Chain.RegistrationHash, query, &status); err != nil {
		return nil, fmt.Errorf("failed to check registration status: %w", err)
	}
	if status.RegistrationStatus {
		return nil, ErrDuplicateRegistration
	}

	// 3. 上链。只提交哈希，明文身份信息不出进程
	msg := map[string]any{
		"register": map[string]any{
			"address": req.Address,
			"id_hash": idHash,
		},
	}
	if req.Affiliate != "" {
		msg["register"].(map[string]any)["affiliate"] = req.Affiliate
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode register message: %w", err)
	}

	outcome, err := s.submitter.Submit(ctx, &tx.Request{
		Contract: s.cfg.Chain.RegistrationContract,
		CodeHash: s.cfg.Chain.RegistrationHash,
		Msg:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit registration: %w", err)
	}
	if outcome.Status == tx.StatusFailed {
		return nil, fmt.Errorf("registration transaction failed on chain: %s", outcome.RawLog)
	}

	s.logger.Info("registration submitted",
		"address", req.Address,
		"status", outcome.Status,
		"txhash", outcome.TxHash,
	)

	return &Result{
		IDHash:   idHash,
		Identity: verdict.Identity,
		Outcome:  outcome,
	}, nil
}

// IdentityHash 规范化身份字段后取 SHA-256。字段名排序由 JSON 编码保证，
// 同一证件在任何时候都得到同一哈希。
func IdentityHash(identity *models.Identity) string {
	canonical := map[string]any{
		"country":             identity.Country,
		"id_number":           identity.IDNumber,
		"name":                identity.Name,
		"date_of_birth":       identity.DateOfBirth,
		"document_expiration": identity.Expiration,
	}

	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func validate(req *Request) error {
	if req.Address == "" {
		return &ValidationError{Field: "address", Reason: "must not be empty"}
	}
	if req.IDImage == "" {
		return &ValidationError{Field: "idImage", Reason: "must not be empty"}
	}
	if !isBase64(req.IDImage) {
		return &ValidationError{Field: "idImage", Reason: "must be base64 encoded"}
	}
	if req.SelfieImage != "" && !isBase64(req.SelfieImage) {
		return &ValidationError{Field: "selfieImage", Reason: "must be base64 encoded"}
	}
	return nil
}

func isBase64(s string) bool {
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

// stripDataURL 浏览器端常带 data:image/...;base64, 前缀，统一剥掉
func stripDataURL(s string) string {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+1:]
	}
	return s
}
