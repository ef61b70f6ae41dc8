package signer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/veridian-network/veridian-api/internal/chain"
	"github.com/veridian-network/veridian-api/internal/utils/request"
)

// Remote implements chain.Signer by delegating to a signing sidecar.
// The wallet key never enters this process.
type Remote struct {
	endpoint   string
	address    string
	httpClient *resty.Client
}

func NewRemote(endpoint, address string) *Remote {
	return &Remote{
		endpoint:   endpoint,
		address:    address,
		httpClient: request.Request,
	}
}

// Address implements the chain.Signer interface
func (r *Remote) Address() string {
	return r.address
}

// Sign implements the chain.Signer interface
func (r *Remote) Sign(ctx context.Context, tx *chain.UnsignedTx) ([]byte, error) {
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(tx).
		Post(r.endpoint + "/sign")
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result struct {
		TxBytes string `json:"tx_bytes"` // base64 编码的已签名交易
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	signed, err := base64.StdEncoding.DecodeString(result.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed tx: %w", err)
	}
	return signed, nil
}
