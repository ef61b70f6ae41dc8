package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/utils/request"
)

type CoinGeckoSource struct {
	baseURL    string
	ids        map[string]string // 代币符号 -> coingecko id
	httpClient *resty.Client
}

func NewCoinGeckoSource(ids map[string]string) *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL:    "https://api.coingecko.com/api/v3",
		ids:        ids,
		httpClient: request.Request,
	}
}

func (c *CoinGeckoSource) Name() string {
	return "coingecko"
}

// SpotPrices fetches USD prices via the simple/price endpoint
func (c *CoinGeckoSource) SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error) {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, ok := c.ids[symbol]
		if !ok {
			return nil, fmt.Errorf("no coingecko id configured for %s", symbol)
		}
		ids = append(ids, id)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, strings.Join(ids, ","))

	resp, err := c.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	table := make(models.PriceTable, len(symbols))
	for _, symbol := range symbols {
		entry, ok := result[c.ids[symbol]]
		if !ok {
			return nil, fmt.Errorf("price for %s missing in response", symbol)
		}
		table[symbol] = entry.USD
	}
	return table, nil
}
