package register

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/tx"
)

type fakeVerifier struct {
	result *models.VerificationResult
	err    error
	calls  int
}

func (f *fakeVerifier) VerifyIdentity(ctx context.Context, idImage, selfieImage string) (*models.VerificationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeQuerier struct {
	registered bool
	err        error
	calls      int
	lastQuery  any
}

func (f *fakeQuerier) SmartQuery(ctx context.Context, contract, codeHash string, query, result any) error {
	f.calls++
	f.lastQuery = query
	if f.err != nil {
		return f.err
	}
	raw, _ := json.Marshal(registrationStatusResponse{RegistrationStatus: f.registered})
	return json.Unmarshal(raw, result)
}

type fakeSubmitter struct {
	outcome *tx.Outcome
	err     error
	calls   int
	lastReq *tx.Request
}

func (f *fakeSubmitter) Submit(ctx context.Context, req *tx.Request) (*tx.Outcome, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func validIdentity() *models.Identity {
	return &models.Identity{
		Country:     "US",
		IDNumber:    "D12345678",
		Name:        "Jane Roe",
		DateOfBirth: 315532800000,
		Expiration:  1893456000000,
	}
}

func acceptedVerdict() *models.VerificationResult {
	return &models.VerificationResult{Success: true, Identity: validIdentity()}
}

func newTestService(v *fakeVerifier, q *fakeQuerier, s *fakeSubmitter) *Service {
	cfg := &configs.Config{
		Chain: configs.ChainConfig{
			RegistrationContract: "veridian1registry",
			RegistrationHash:     "reghash",
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(v, q, s, cfg, logger)
}

func validRequest() *Request {
	img := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	return &Request{Address: "veridian1sender", IDImage: img}
}

func TestService_Register_Confirmed(t *testing.T) {
	verifier := &fakeVerifier{result: acceptedVerdict()}
	querier := &fakeQuerier{}
	submitter := &fakeSubmitter{outcome: &tx.Outcome{Status: tx.StatusConfirmed, TxHash: "ABC123"}}
	svc := newTestService(verifier, querier, submitter)

	res, err := svc.Register(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, tx.StatusConfirmed, res.Outcome.Status)
	assert.Equal(t, "ABC123", res.Outcome.TxHash)
	assert.Equal(t, IdentityHash(validIdentity()), res.IDHash)

	require.NotNil(t, submitter.lastReq)
	assert.Equal(t, "veridian1registry", submitter.lastReq.Contract)
	assert.Contains(t, string(submitter.lastReq.Msg), res.IDHash)
	assert.Contains(t, string(submitter.lastReq.Msg), "veridian1sender")
	assert.NotContains(t, string(submitter.lastReq.Msg), "Jane Roe", "plaintext identity must never go on chain")
}

func TestService_Register_RejectedDocumentSkipsChain(t *testing.T) {
	verifier := &fakeVerifier{result: &models.VerificationResult{
		Success:       false,
		IsFake:        true,
		FailureReason: "hologram missing",
	}}
	querier := &fakeQuerier{}
	submitter := &fakeSubmitter{}
	svc := newTestService(verifier, querier, submitter)

	_, err := svc.Register(context.Background(), validRequest())

	var rejected *VerificationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "hologram")
	assert.Zero(t, querier.calls, "rejected documents must not touch the chain")
	assert.Zero(t, submitter.calls)
}

func TestService_Register_SelfieMismatch(t *testing.T) {
	noMatch := false
	verdict := acceptedVerdict()
	verdict.SelfieMatch = &noMatch
	verdict.SelfieMatchReason = "different person"

	submitter := &fakeSubmitter{}
	svc := newTestService(&fakeVerifier{result: verdict}, &fakeQuerier{}, submitter)

	req := validRequest()
	req.SelfieImage = base64.StdEncoding.EncodeToString([]byte("selfie"))
	_, err := svc.Register(context.Background(), req)

	var rejected *VerificationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Zero(t, submitter.calls)
}

func TestService_Register_Duplicate(t *testing.T) {
	submitter := &fakeSubmitter{}
	svc := newTestService(&fakeVerifier{result: acceptedVerdict()}, &fakeQuerier{registered: true}, submitter)

	_, err := svc.Register(context.Background(), validRequest())

	require.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.Zero(t, submitter.calls, "duplicates must not be re-submitted")
}

func TestService_Register_ValidationErrors(t *testing.T) {
	verifier := &fakeVerifier{result: acceptedVerdict()}
	svc := newTestService(verifier, &fakeQuerier{}, &fakeSubmitter{})

	cases := []struct {
		name  string
		req   *Request
		field string
	}{
		{"missing address", &Request{IDImage: "aGk="}, "address"},
		{"missing image", &Request{Address: "veridian1sender"}, "idImage"},
		{"bad base64", &Request{Address: "veridian1sender", IDImage: "not base64!!"}, "idImage"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
	assert.Zero(t, verifier.calls, "invalid requests must not reach the model")
}

func TestService_Register_DataURLPrefixStripped(t *testing.T) {
	verifier := &fakeVerifier{result: acceptedVerdict()}
	submitter := &fakeSubmitter{outcome: &tx.Outcome{Status: tx.StatusConfirmed}}
	svc := newTestService(verifier, &fakeQuerier{}, submitter)

	req := validRequest()
	req.IDImage = "data:image/jpeg;base64," + req.IDImage
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, verifier.calls)
}

func TestService_Register_OnChainFailure(t *testing.T) {
	submitter := &fakeSubmitter{outcome: &tx.Outcome{
		Status: tx.StatusFailed,
		Stage:  tx.StageExecution,
		RawLog: "contract error: registration closed",
	}}
	svc := newTestService(&fakeVerifier{result: acceptedVerdict()}, &fakeQuerier{}, submitter)

	_, err := svc.Register(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration closed")
}

func TestService_Register_TimedOutIsNotAnError(t *testing.T) {
	submitter := &fakeSubmitter{outcome: &tx.Outcome{Status: tx.StatusTimedOut, TxHash: "PENDING1"}}
	svc := newTestService(&fakeVerifier{result: acceptedVerdict()}, &fakeQuerier{}, submitter)

	res, err := svc.Register(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, tx.StatusTimedOut, res.Outcome.Status)
}

func TestIdentityHash_Deterministic(t *testing.T) {
	a := IdentityHash(validIdentity())
	b := IdentityHash(validIdentity())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other := validIdentity()
	other.IDNumber = "D87654321"
	assert.NotEqual(t, a, IdentityHash(other))
}
