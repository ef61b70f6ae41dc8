package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veridian-network/veridian-api/internal/analytics/store"
	"github.com/veridian-network/veridian-api/internal/chain"
	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/oracle"
)

const dayMillis = 86400 * 1000

// Aggregator derives the base asset's price and TVL from pool reserves and
// external spot prices, appending one data point per UTC day.
type Aggregator struct {
	gateway chain.Gateway
	oracle  oracle.Oracle
	store   store.Store
	cfg     *configs.Config
	logger  *slog.Logger

	// 同一时刻只允许一轮统计在跑，启动补跑和定时触发会竞争
	mu sync.Mutex
}

func NewAggregator(gateway chain.Gateway, priceOracle oracle.Oracle, st store.Store, cfg *configs.Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		gateway: gateway,
		oracle:  priceOracle,
		store:   st,
		cfg:     cfg,
		logger:  logger,
	}
}

type tokenInfoResponse struct {
	TokenInfo struct {
		TotalSupply string `json:"total_supply"`
	} `json:"token_info"`
}

type poolState struct {
	State struct {
		BaseReserve  string `json:"base_reserve"`
		TokenReserve string `json:"token_b_reserve"`
	} `json:"state"`
}

// RunCycle fetches everything fresh, runs the two-phase price derivation and
// appends the resulting data point. Any fetch or computation error aborts the
// cycle without touching history; re-invocation within the same UTC day is a
// no-op on persisted state.
func (a *Aggregator) RunCycle(ctx context.Context) (*models.AnalyticsDataPoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// 1. 外部报价。只有配了价格引用的代币才拉，基础资产和次级资产都没有
	referenced, setAside := a.splitPoolTokens()

	prices, err := a.oracle.SpotPrices(ctx, referenced)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spot prices: %w", err)
	}

	// 2. 两种资产的总供应量
	baseSupply, err := a.fetchTotalSupply(ctx, a.cfg.BaseSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base supply: %w", err)
	}
	secondarySupply, err := a.fetchTotalSupply(ctx, a.cfg.SecondarySymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secondary supply: %w", err)
	}

	// 3. 统一池合约一次性查所有池子的储备
	poolTokens := append(append([]string{}, referenced...), setAside...)
	reserves, err := a.fetchReserves(ctx, poolTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool reserves: %w", err)
	}

	// 4. 第一阶段：对手代币有外部报价的池子，推导各池隐含的基础资产价格，
	// 按池内流动性加权。储备为零的池子贡献 0，不会扭曲平均值。
	weightedPriceSum := decimal.Zero
	liquiditySum := decimal.Zero
	var pools []models.PoolMetrics

	for _, symbol := range referenced {
		r := reserves[symbol]
		price := decimal.NewFromFloat(prices[symbol])

		poolBasePrice := decimal.Zero
		if !r.BaseReserve.IsZero() {
			poolBasePrice = r.TokenReserve.Div(r.BaseReserve).Mul(price)
		}
		poolTVL := r.TokenReserve.Mul(price).Add(r.BaseReserve.Mul(poolBasePrice))

		weightedPriceSum = weightedPriceSum.Add(poolBasePrice.Mul(poolTVL))
		liquiditySum = liquiditySum.Add(poolTVL)

		pools = append(pools, models.PoolMetrics{
			Token:     symbol,
			BasePrice: poolBasePrice.InexactFloat64(),
			TVL:       poolTVL.InexactFloat64(),
		})
	}

	globalBasePrice := decimal.Zero
	if !liquiditySum.IsZero() {
		globalBasePrice = weightedPriceSum.Div(liquiditySum)
	}

	// 5. 第二阶段：无外部报价的池子（次级资产）用刚得到的全局价格反推。
	// 顺序不能换，换了全局价格就会把这些池子也算进去。
	secondaryPrice := decimal.Zero
	for _, symbol := range setAside {
		r, ok := reserves[symbol]
		if !ok {
			continue
		}

		derived := decimal.Zero
		if !r.TokenReserve.IsZero() {
			derived = r.BaseReserve.Div(r.TokenReserve).Mul(globalBasePrice)
		}
		poolTVL := r.TokenReserve.Mul(derived).Add(r.BaseReserve.Mul(globalBasePrice))

		liquiditySum = liquiditySum.Add(poolTVL)
		if symbol == a.cfg.SecondarySymbol {
			secondaryPrice = derived
		}

		// 该池的基础资产价格就是全局价格
		pools = append(pools, models.PoolMetrics{
			Token:     symbol,
			BasePrice: globalBasePrice.InexactFloat64(),
			TVL:       poolTVL.InexactFloat64(),
		})
	}

	// 6. 组装当日数据点
	basePrice := globalBasePrice.InexactFloat64()
	secondaryPriceF := secondaryPrice.InexactFloat64()

	point := &models.AnalyticsDataPoint{
		Timestamp:            dayStart(time.Now()),
		BasePrice:            basePrice,
		BaseTotalSupply:      baseSupply,
		BaseMarketCap:        basePrice * baseSupply,
		TVL:                  liquiditySum.InexactFloat64(),
		Pools:                pools,
		SecondaryPrice:       secondaryPriceF,
		SecondaryTotalSupply: secondarySupply,
		SecondaryMarketCap:   secondaryPriceF * secondarySupply,
	}

	// 7. 同一天只留一条记录，重复触发直接丢弃
	history, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	for _, existing := range history {
		if existing.Timestamp == point.Timestamp {
			a.logger.Info("data point for day already exists, skipping append", "timestamp", point.Timestamp)
			return point, nil
		}
	}

	if err := a.store.Append(ctx, *point); err != nil {
		return nil, fmt.Errorf("failed to persist data point: %w", err)
	}

	a.logger.Info("analytics cycle complete", "base_price", point.BasePrice, "tvl", point.TVL)
	return point, nil
}

// Start runs the scheduler loop: an immediate catch-up cycle when history is
// missing or a day old, then one cycle per interval. Cycle errors are logged
// and the loop keeps its cadence.
func (a *Aggregator) Start(ctx context.Context, interval time.Duration) {
	if a.isStale(ctx) {
		a.logger.Info("analytics history stale or missing, running initial cycle")
		if _, err := a.RunCycle(ctx); err != nil {
			a.logger.Error("initial analytics cycle failed", "err", err)
		}
	} else {
		a.logger.Info("analytics history up to date")
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.RunCycle(ctx); err != nil {
					a.logger.Error("analytics cycle failed", "err", err)
				}
			}
		}
	}()
}

func (a *Aggregator) isStale(ctx context.Context) bool {
	latest, ok, err := a.store.Latest(ctx)
	if err != nil {
		a.logger.Error("failed to read latest data point", "err", err)
		return true
	}
	if !ok {
		return true
	}
	return time.Now().UnixMilli()-latest.Timestamp >= dayMillis
}

// splitPoolTokens 把非基础资产代币按有无外部报价分成两组，组内按符号排序保证
// 每轮统计的池子顺序稳定
func (a *Aggregator) splitPoolTokens() (referenced, setAside []string) {
	for symbol, token := range a.cfg.Tokens {
		if symbol == a.cfg.BaseSymbol {
			continue
		}
		if token.CoingeckoID != "" || token.BinanceSymbol != "" {
			referenced = append(referenced, symbol)
		} else {
			setAside = append(setAside, symbol)
		}
	}
	sort.Strings(referenced)
	sort.Strings(setAside)
	return referenced, setAside
}

func (a *Aggregator) fetchTotalSupply(ctx context.Context, symbol string) (float64, error) {
	token, ok := a.cfg.Tokens[symbol]
	if !ok {
		return 0, fmt.Errorf("token %s not configured", symbol)
	}

	var info tokenInfoResponse
	if err := a.gateway.SmartQuery(ctx, token.Contract, token.Hash, map[string]any{"token_info": map[string]any{}}, &info); err != nil {
		return 0, fmt.Errorf("token_info query for %s: %w", symbol, err)
	}

	raw, err := decimal.NewFromString(info.TokenInfo.TotalSupply)
	if err != nil {
		return 0, fmt.Errorf("failed to parse total supply for %s: %w", symbol, err)
	}
	return raw.Shift(-token.Decimals).InexactFloat64(), nil
}

// fetchReserves queries the unified pool contract for every requested pool in
// one call. The reply is a parallel array in request order.
func (a *Aggregator) fetchReserves(ctx context.Context, symbols []string) (map[string]models.PoolReserves, error) {
	baseToken, ok := a.cfg.Tokens[a.cfg.BaseSymbol]
	if !ok {
		return nil, fmt.Errorf("base token %s not configured", a.cfg.BaseSymbol)
	}

	addresses := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		token, ok := a.cfg.Tokens[symbol]
		if !ok {
			return nil, fmt.Errorf("token %s not configured", symbol)
		}
		addresses = append(addresses, token.Contract)
	}

	var states []poolState
	query := map[string]any{"query_pool_info": map[string]any{"pools": addresses}}
	if err := a.gateway.SmartQuery(ctx, a.cfg.Chain.UnifiedPoolContract, a.cfg.Chain.UnifiedPoolHash, query, &states); err != nil {
		return nil, fmt.Errorf("pool info query: %w", err)
	}
	if len(states) != len(symbols) {
		return nil, fmt.Errorf("pool info reply has %d entries, want %d", len(states), len(symbols))
	}

	reserves := make(map[string]models.PoolReserves, len(symbols))
	for i, symbol := range symbols {
		token := a.cfg.Tokens[symbol]

		baseReserve, err := decimal.NewFromString(states[i].State.BaseReserve)
		if err != nil {
			return nil, fmt.Errorf("failed to parse base reserve for %s: %w", symbol, err)
		}
		tokenReserve, err := decimal.NewFromString(states[i].State.TokenReserve)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token reserve for %s: %w", symbol, err)
		}

		reserves[symbol] = models.PoolReserves{
			Token:        symbol,
			BaseReserve:  baseReserve.Shift(-baseToken.Decimals),
			TokenReserve: tokenReserve.Shift(-token.Decimals),
		}
	}
	return reserves, nil
}

// dayStart 归一到 UTC 日起始，毫秒
func dayStart(t time.Time) int64 {
	return t.UTC().Unix() / 86400 * dayMillis
}
