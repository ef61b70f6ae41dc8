package oracle

import (
	"context"
	"fmt"

	"github.com/veridian-network/veridian-api/internal/models"
)

// MultiSourceOracle implements the Oracle interface by trying sources in order
type MultiSourceOracle struct {
	sources []Source
	logger  Logger
}

func NewMultiSourceOracle(sources []Source, logger Logger) *MultiSourceOracle {
	return &MultiSourceOracle{
		sources: sources,
		logger:  logger,
	}
}

// SpotPrices implements the Oracle interface. The first source that returns a
// price for every requested symbol wins; partial tables count as failure so a
// degraded source never contaminates one aggregation cycle.
func (o *MultiSourceOracle) SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error) {
	for _, source := range o.sources {
		table, err := source.SpotPrices(ctx, symbols)
		if err != nil {
			o.logger.Error("failed to fetch spot prices", "source", source.Name(), "error", err)
			continue
		}

		if missing := missingSymbols(table, symbols); len(missing) > 0 {
			o.logger.Error("spot price table incomplete", "source", source.Name(), "missing", missing)
			continue
		}

		o.logger.Info("fetched spot prices", "source", source.Name(), "symbols", symbols)
		return table, nil
	}

	return nil, fmt.Errorf("failed to fetch spot prices from all sources")
}

func missingSymbols(table models.PriceTable, symbols []string) []string {
	var missing []string
	for _, symbol := range symbols {
		if _, ok := table[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	return missing
}
