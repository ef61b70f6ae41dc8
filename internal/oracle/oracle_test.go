package oracle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-network/veridian-api/internal/models"
)

type stubSource struct {
	name  string
	table models.PriceTable
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) SpotPrices(ctx context.Context, symbols []string) (models.PriceTable, error) {
	s.calls++
	return s.table, s.err
}

type nopLogger struct{}

func (nopLogger) Error(msg string, fields ...interface{}) {}
func (nopLogger) Info(msg string, fields ...interface{})  {}

func TestMultiSourceOracle_FirstSourceWins(t *testing.T) {
	primary := &stubSource{name: "primary", table: models.PriceTable{"ATOM": 0.25, "USDC": 0.01}}
	fallback := &stubSource{name: "fallback", table: models.PriceTable{"ATOM": 0.30, "USDC": 0.02}}
	o := NewMultiSourceOracle([]Source{primary, fallback}, nopLogger{})

	table, err := o.SpotPrices(context.Background(), []string{"ATOM", "USDC"})
	require.NoError(t, err)
	assert.Equal(t, 0.25, table["ATOM"])
	assert.Equal(t, 0, fallback.calls)
}

func TestMultiSourceOracle_FallsBackOnError(t *testing.T) {
	primary := &stubSource{name: "primary", err: fmt.Errorf("rate limited")}
	fallback := &stubSource{name: "fallback", table: models.PriceTable{"ATOM": 0.30}}
	o := NewMultiSourceOracle([]Source{primary, fallback}, nopLogger{})

	table, err := o.SpotPrices(context.Background(), []string{"ATOM"})
	require.NoError(t, err)
	assert.Equal(t, 0.30, table["ATOM"])
	assert.Equal(t, 1, primary.calls)
}

func TestMultiSourceOracle_PartialTableIsFailure(t *testing.T) {
	// 缺一个符号都不行，残缺的价格表会污染整轮统计
	partial := &stubSource{name: "partial", table: models.PriceTable{"ATOM": 0.25}}
	o := NewMultiSourceOracle([]Source{partial}, nopLogger{})

	_, err := o.SpotPrices(context.Background(), []string{"ATOM", "USDC"})
	require.Error(t, err)
}

func TestMultiSourceOracle_AllSourcesFail(t *testing.T) {
	a := &stubSource{name: "a", err: fmt.Errorf("down")}
	b := &stubSource{name: "b", err: fmt.Errorf("down")}
	o := NewMultiSourceOracle([]Source{a, b}, nopLogger{})

	_, err := o.SpotPrices(context.Background(), []string{"ATOM"})
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
