package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/veridian-network/veridian-api/internal/chain"
	"github.com/veridian-network/veridian-api/internal/utils/request"
)

// Client implements the chain.Gateway interface against an LCD REST endpoint
type Client struct {
	baseURL    string
	chainID    string
	httpClient *resty.Client
}

func NewClient(baseURL, chainID string) *Client {
	return &Client{
		baseURL:    baseURL,
		chainID:    chainID,
		httpClient: request.Request,
	}
}

// SmartQuery implements the chain.Gateway interface
func (c *Client) SmartQuery(ctx context.Context, contract, codeHash string, query any, result any) error {
	queryBytes, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	url := fmt.Sprintf("%s/compute/v1beta1/query/%s", c.baseURL, contract)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("query", base64.StdEncoding.EncodeToString(queryBytes)).
		SetQueryParam("code_hash", codeHash).
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to decode contract reply: %w", err)
	}
	return nil
}

// BankBalance implements the chain.Gateway interface
func (c *Client) BankBalance(ctx context.Context, address, denom string) (int64, error) {
	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s/by_denom", c.baseURL, address)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("denom", denom).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result struct {
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	// 没有余额记录时 LCD 返回空 amount
	if result.Balance.Amount == "" {
		return 0, nil
	}

	amount, err := strconv.ParseInt(result.Balance.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse balance amount: %w", err)
	}
	return amount, nil
}

// BroadcastTx implements the chain.Gateway interface using sync broadcast mode
func (c *Client) BroadcastTx(ctx context.Context, signedTx []byte) (*chain.BroadcastAck, error) {
	url := fmt.Sprintf("%s/cosmos/tx/v1beta1/txs", c.baseURL)

	body := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(signedTx),
		"mode":     "BROADCAST_MODE_SYNC",
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result struct {
		TxResponse struct {
			Code   uint32 `json:"code"`
			TxHash string `json:"txhash"`
			RawLog string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &chain.BroadcastAck{
		Code:   result.TxResponse.Code,
		TxHash: result.TxResponse.TxHash,
		RawLog: result.TxResponse.RawLog,
	}, nil
}

// TxByHash implements the chain.Gateway interface. A 404 from the LCD means
// the transaction is not indexed yet and is reported as found=false, nil.
func (c *Client) TxByHash(ctx context.Context, hash string) (*chain.TxResult, bool, error) {
	url := fmt.Sprintf("%s/cosmos/tx/v1beta1/txs/%s", c.baseURL, hash)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, false, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result struct {
		TxResponse struct {
			Code   uint32 `json:"code"`
			RawLog string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	return &chain.TxResult{
		Code:   result.TxResponse.Code,
		RawLog: result.TxResponse.RawLog,
	}, true, nil
}
