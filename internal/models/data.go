package models

import (
	"github.com/shopspring/decimal"
)

// PoolReserves 单个流动性池的储备快照（每轮统计重新拉取，取出后不再修改）
type PoolReserves struct {
	Token        string          `json:"token"`         // 非基础资产一侧的代币符号
	BaseReserve  decimal.Decimal `json:"base_reserve"`  // 基础资产储备（已按 decimals 归一化）
	TokenReserve decimal.Decimal `json:"token_reserve"` // 对手代币储备（已按 decimals 归一化）
}

// PriceTable maps a token symbol to its external USD spot price.
// The base asset never appears here: its price is derived, not fetched.
type PriceTable map[string]float64

// PoolMetrics 单池派生指标，只参与计算，不单独持久化
type PoolMetrics struct {
	Token     string  `json:"token"`
	BasePrice float64 `json:"base_price"` // 该池隐含的基础资产价格
	TVL       float64 `json:"tvl"`
}

// AnalyticsDataPoint is one day's derived price/TVL record. At most one
// point exists per UTC day-start timestamp; the history is append-only.
type AnalyticsDataPoint struct {
	Timestamp            int64         `json:"timestamp"` // UTC 日起始时间，毫秒
	BasePrice            float64       `json:"base_price"`
	BaseTotalSupply      float64       `json:"base_total_supply"`
	BaseMarketCap        float64       `json:"base_market_cap"`
	TVL                  float64       `json:"tvl"`
	Pools                []PoolMetrics `json:"pools"`
	SecondaryPrice       float64       `json:"secondary_price"`
	SecondaryTotalSupply float64       `json:"secondary_total_supply"`
	SecondaryMarketCap   float64       `json:"secondary_market_cap"`
}

// Identity 从证件中提取出的身份字段，只在进程内存在，上链前会被哈希
type Identity struct {
	Country     string `json:"country"`
	IDNumber    string `json:"id_number"`
	Name        string `json:"name"`
	DateOfBirth int64  `json:"date_of_birth"`       // Unix 秒
	Expiration  int64  `json:"document_expiration"` // Unix 秒，0 表示证件未标注
}

// VerificationResult is the structured verdict returned by the AI verifier.
type VerificationResult struct {
	Success           bool      `json:"success"`
	Identity          *Identity `json:"identity"`
	IsFake            bool      `json:"is_fake"`
	FailureReason     string    `json:"failure_reason"`
	SelfieMatch       *bool     `json:"selfie_match"` // nil 表示未提供自拍
	SelfieMatchReason string    `json:"selfie_match_reason"`
}
