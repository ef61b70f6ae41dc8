package oracle

import (
	"context"

	"github.com/veridian-network/veridian-api/internal/models"
)

// Oracle fetches external USD spot prices for reference tokens
type Oracle interface {
	// SpotPrices returns a complete price table for the requested symbols;
	// a missing symbol or a non-200 upstream reply is a hard failure.
	SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error)
}

// Source 单个报价源
type Source interface {
	Name() string
	SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error)
}

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}
