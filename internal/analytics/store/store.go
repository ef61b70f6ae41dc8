package store

import (
	"context"

	"github.com/veridian-network/veridian-api/internal/models"
)

// Store 统计历史的持久化抽象。聚合器是唯一写入方，查询端只读快照。
type Store interface {
	// Load reads the full history once at startup
	Load(ctx context.Context) ([]models.AnalyticsDataPoint, error)

	// Append persists one new data point at the end of the history
	Append(ctx context.Context, point models.AnalyticsDataPoint) error

	// Snapshot returns a copy of the full ordered history
	Snapshot(ctx context.Context) ([]models.AnalyticsDataPoint, error)

	// Latest returns the most recent data point, ok=false when history is empty
	Latest(ctx context.Context) (*models.AnalyticsDataPoint, bool, error)
}
