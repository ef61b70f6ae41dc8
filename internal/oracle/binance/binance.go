package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"github.com/veridian-network/veridian-api/internal/models"
)

// BinanceSource is the fallback spot-price source. USDT quotes are treated
// as USD, which is close enough for TVL weighting purposes.
type BinanceSource struct {
	client *binance.Client
	pairs  map[string]string // 代币符号 -> 币安交易对，如 ATOM -> ATOMUSDT
}

func NewBinanceSource(pairs map[string]string) *BinanceSource {
	// 行情接口无需鉴权
	return &BinanceSource{
		client: binance.NewClient("", ""),
		pairs:  pairs,
	}
}

func (b *BinanceSource) Name() string {
	return "binance"
}

// SpotPrices fetches the latest traded price for each mapped pair
func (b *BinanceSource) SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error) {
	table := make(models.PriceTable, len(symbols))

	for _, symbol := range symbols {
		pair, ok := b.pairs[symbol]
		if !ok {
			return nil, fmt.Errorf("no binance pair configured for %s", symbol)
		}

		prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch price for %s: %w", pair, err)
		}
		if len(prices) == 0 {
			return nil, fmt.Errorf("no price returned for %s", pair)
		}

		price, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price for %s: %w", pair, err)
		}
		table[symbol] = price
	}

	return table, nil
}
