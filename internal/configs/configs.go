package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	// 基础配置
	BaseSymbol      string `json:"base_symbol" yaml:"base_symbol"`           // 基础资产符号（价格由池子推导）
	SecondarySymbol string `json:"secondary_symbol" yaml:"secondary_symbol"` // 次级资产符号（无外部报价）

	Chain     ChainConfig      `json:"chain" yaml:"chain"`
	Tokens    map[string]Token `json:"tokens" yaml:"tokens"`
	AIConfig  AIConfig         `json:"ai_config" yaml:"ai_config"`
	Analytics AnalyticsConfig  `json:"analytics" yaml:"analytics"`
	Submitter SubmitterConfig  `json:"submitter" yaml:"submitter"`
	Server    ServerConfig     `json:"server" yaml:"server"`
}

// ChainConfig 链接入配置
type ChainConfig struct {
	LCDURL               string `json:"lcd_url" yaml:"lcd_url"` // LCD REST 入口
	ChainID              string `json:"chain_id" yaml:"chain_id"`
	RegistrationContract string `json:"registration_contract" yaml:"registration_contract"`
	RegistrationHash     string `json:"registration_hash" yaml:"registration_hash"` // 合约 code hash
	UnifiedPoolContract  string `json:"unified_pool_contract" yaml:"unified_pool_contract"`
	UnifiedPoolHash      string `json:"unified_pool_hash" yaml:"unified_pool_hash"`
	SignerURL            string `json:"signer_url" yaml:"signer_url"`         // 签名 sidecar 地址
	SenderAddress        string `json:"sender_address" yaml:"sender_address"` // 服务端钱包地址
	FeeDenom             string `json:"fee_denom" yaml:"fee_denom"`
}

// Token 单个代币的链上元数据
type Token struct {
	Contract      string `json:"contract" yaml:"contract"`
	Hash          string `json:"hash" yaml:"hash"`
	Decimals      int32  `json:"decimals" yaml:"decimals"`
	CoingeckoID   string `json:"coingecko_id,omitempty" yaml:"coingecko_id"`     // 为空表示无外部报价
	BinanceSymbol string `json:"binance_symbol,omitempty" yaml:"binance_symbol"` // 备用价格源的交易对
}

// AIConfig AI 核身参数
type AIConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // openai 或 secretai
	APIKey      string  `json:"api_key" yaml:"api_key"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// AnalyticsConfig 统计任务参数
type AnalyticsConfig struct {
	FilePath string `json:"file_path" yaml:"file_path"` // JSON 历史文件路径
	ConnStr  string `json:"conn_str" yaml:"conn_str"`   // 非空则改用 Postgres 存储
	Interval string `json:"interval" yaml:"interval"`   // 统计周期，默认 24h
}

// SubmitterConfig 交易提交策略（可调参数，非固定需求）
type SubmitterConfig struct {
	MinBalance   int64  `json:"min_balance" yaml:"min_balance"`     // 手续费余额下限，基础单位
	GasLimit     uint64 `json:"gas_limit" yaml:"gas_limit"`
	GasPrice     string `json:"gas_price" yaml:"gas_price"`
	PollInterval string `json:"poll_interval" yaml:"poll_interval"` // 轮询间隔
	MaxAttempts  int    `json:"max_attempts" yaml:"max_attempts"`   // 轮询次数上限
}

// ServerConfig HTTP 服务参数
type ServerConfig struct {
	Port               int      `json:"port" yaml:"port"`
	AllowedOrigins     []string `json:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout     string   `json:"request_timeout" yaml:"request_timeout"`
	RegistrationLimit  int      `json:"registration_limit" yaml:"registration_limit"`   // 窗口期内单 IP 注册上限
	RegistrationWindow string   `json:"registration_window" yaml:"registration_window"` // 限流窗口，默认 144h
}

// Load reads the JSON config file and applies environment overrides for
// secrets, then fills defaults for anything left unset.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := json.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// 密钥类配置一律允许环境变量覆盖
	if v := os.Getenv("AI_API_KEY"); v != "" {
		config.AIConfig.APIKey = v
	}
	if v := os.Getenv("SIGNER_URL"); v != "" {
		config.Chain.SignerURL = v
	}
	if v := os.Getenv("ANALYTICS_CONN_STR"); v != "" {
		config.Analytics.ConnStr = v
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.BaseSymbol == "" {
		c.BaseSymbol = "VRD"
	}
	if c.SecondarySymbol == "" {
		c.SecondarySymbol = "ANIMA"
	}
	if c.Chain.FeeDenom == "" {
		c.Chain.FeeDenom = "uvrd"
	}
	if c.Submitter.MinBalance <= 0 {
		c.Submitter.MinBalance = 1_000_000
	}
	if c.Submitter.GasLimit == 0 {
		c.Submitter.GasLimit = 1_000_000
	}
	if c.Submitter.GasPrice == "" {
		c.Submitter.GasPrice = "0.1"
	}
	if c.Submitter.PollInterval == "" {
		c.Submitter.PollInterval = "1s"
	}
	if c.Submitter.MaxAttempts <= 0 {
		c.Submitter.MaxAttempts = 30
	}
	if c.Analytics.FilePath == "" {
		c.Analytics.FilePath = "analyticsData.json"
	}
	if c.Analytics.Interval == "" {
		c.Analytics.Interval = "24h"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "90s"
	}
	if c.Server.RegistrationLimit <= 0 {
		c.Server.RegistrationLimit = 1
	}
	if c.Server.RegistrationWindow == "" {
		c.Server.RegistrationWindow = "144h"
	}
}

// AnalyticsInterval 解析统计周期，解析失败时退回默认值
func (c *Config) AnalyticsInterval() time.Duration {
	d, err := time.ParseDuration(c.Analytics.Interval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// PollInterval 解析轮询间隔，解析失败时退回默认值
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Submitter.PollInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// RequestTimeout 解析请求超时时间
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// RegistrationWindow 解析单 IP 注册限流窗口
func (c *Config) RegistrationWindow() time.Duration {
	d, err := time.ParseDuration(c.Server.RegistrationWindow)
	if err != nil {
		return 144 * time.Hour
	}
	return d
}
