package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/veridian-network/veridian-api/internal/ai"
	openaiVerifier "github.com/veridian-network/veridian-api/internal/ai/openai"
	"github.com/veridian-network/veridian-api/internal/ai/secretai"
	"github.com/veridian-network/veridian-api/internal/analytics"
	"github.com/veridian-network/veridian-api/internal/analytics/store"
	"github.com/veridian-network/veridian-api/internal/chain/lcd"
	"github.com/veridian-network/veridian-api/internal/chain/signer"
	"github.com/veridian-network/veridian-api/internal/configs"
	"github.com/veridian-network/veridian-api/internal/oracle"
	"github.com/veridian-network/veridian-api/internal/oracle/binance"
	"github.com/veridian-network/veridian-api/internal/oracle/coingecko"
	"github.com/veridian-network/veridian-api/internal/register"
	"github.com/veridian-network/veridian-api/internal/server"
	"github.com/veridian-network/veridian-api/internal/tx"
)

var (
	flagconf string

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "config.json", "config path, eg: -conf config.json")
}

func main() {
	flag.Parse()

	// .env 不存在时静默跳过，容器环境直接注入环境变量
	_ = godotenv.Load()

	config, err := configs.Load(flagconf)
	if err != nil {
		log.Error("Error loading config", "err", err)
		return
	}

	log.Debug("Loaded config", "base", config.BaseSymbol, "chain_id", config.Chain.ChainID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 链网关和签名 sidecar
	gateway := lcd.NewClient(config.Chain.LCDURL, config.Chain.ChainID)
	txSigner := signer.NewRemote(config.Chain.SignerURL, config.Chain.SenderAddress)

	log.Debug("init gateway", "lcd", config.Chain.LCDURL)

	submitter := tx.NewSubmitter(gateway, txSigner, tx.Policy{
		MinBalance:   config.Submitter.MinBalance,
		FeeDenom:     config.Chain.FeeDenom,
		GasLimit:     config.Submitter.GasLimit,
		GasPrice:     config.Submitter.GasPrice,
		PollInterval: config.PollInterval(),
		MaxAttempts:  config.Submitter.MaxAttempts,
	}, log)

	log.Debug("init submitter")

	// 启动时报一次钱包余额，低于阈值的部署能第一时间被发现
	if balance, err := gateway.BankBalance(ctx, config.Chain.SenderAddress, config.Chain.FeeDenom); err != nil {
		log.Error("Error querying wallet balance", "err", err)
	} else {
		log.Info("wallet balance", "address", config.Chain.SenderAddress, "denom", config.Chain.FeeDenom, "amount", balance)
	}

	// 报价源按声明顺序降级，CoinGecko 挂了换币安
	coingeckoIDs := make(map[string]string)
	binancePairs := make(map[string]string)
	for symbol, token := range config.Tokens {
		if token.CoingeckoID != "" {
			coingeckoIDs[symbol] = token.CoingeckoID
		}
		if token.BinanceSymbol != "" {
			binancePairs[symbol] = token.BinanceSymbol
		}
	}
	priceOracle := oracle.NewMultiSourceOracle([]oracle.Source{
		coingecko.NewCoinGeckoSource(coingeckoIDs),
		binance.NewBinanceSource(binancePairs),
	}, log)

	log.Debug("init oracle")

	analyticsStore, err := newStore(config)
	if err != nil {
		log.Error("Error creating analytics store", "err", err)
		return
	}
	if _, err := analyticsStore.Load(ctx); err != nil {
		log.Error("Error loading analytics history", "err", err)
		return
	}

	log.Debug("init store")

	aggregator := analytics.NewAggregator(gateway, priceOracle, analyticsStore, config, log)
	aggregator.Start(ctx, config.AnalyticsInterval())

	log.Debug("init aggregator")

	verifier := newVerifier(config)

	log.Debug("init verifier", "provider", config.AIConfig.Provider)

	registrar := register.NewService(verifier, gateway, submitter, config, log)

	limiter := server.NewIPLimiter(config.Server.RegistrationLimit, config.RegistrationWindow())
	limiter.Start(ctx)

	srv := server.New(registrar, analyticsStore, limiter, config, log)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server error", "err", err)
	}
}

// newStore 配了数据库连接串就用 Postgres，否则落单个 JSON 文件
func newStore(config *configs.Config) (store.Store, error) {
	if config.Analytics.ConnStr != "" {
		return store.NewPostgresStore(config.Analytics.ConnStr)
	}
	return store.NewFileStore(config.Analytics.FilePath), nil
}

func newVerifier(config *configs.Config) ai.Verifier {
	if config.AIConfig.Provider == "secretai" {
		return secretai.NewSecretAIVerifier(
			config.AIConfig.APIKey,
			config.AIConfig.BaseURL,
			config.AIConfig.Model,
			config.AIConfig.Temperature,
		)
	}
	return openaiVerifier.NewOpenAIVerifier(
		config.AIConfig.APIKey,
		config.AIConfig.BaseURL,
		config.AIConfig.Model,
		config.AIConfig.Temperature,
	)
}
