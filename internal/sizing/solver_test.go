package sizing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// linearQuote - цена постоянна, плечо растет линейно с размером.
func linearQuote(price, fee string) QuoteFunc {
	return func(_ context.Context, _ decimal.Decimal) (Quote, error) {
		return Quote{EntryPrice: d(price), FeeUsd: d(fee)}, nil
	}
}

func newSolver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSolve_MonotonicConverges(t *testing.T) {
	s := newSolver(t)
	// залог 100 USD, комиссия 4 => net 96; цена 10 => supremum = 1.5*96/10 = 14.4
	req := Request{Collateral: d("100"), CollateralUsd: d("100")}

	res, err := s.Solve(context.Background(), req, linearQuote("10", "4"))
	require.NoError(t, err)

	sup := d("14.4")
	assert.True(t, res.Leverage.GreaterThanOrEqual(d("1")), "leverage %s", res.Leverage)
	assert.True(t, res.Leverage.LessThanOrEqual(d("1.5")), "leverage %s", res.Leverage)
	assert.True(t, res.Size.LessThanOrEqual(sup))
	assert.True(t, sup.Sub(res.Size).LessThanOrEqual(d("0.01")), "size %s", res.Size)
	assert.Equal(t, d("10").String(), res.EntryPrice.String())
	assert.Positive(t, res.Quotes)
}

func TestSolve_QuoteFailuresAreAboveBand(t *testing.T) {
	s := newSolver(t)
	req := Request{Collateral: d("100"), CollateralUsd: d("100")}
	limit := d("12")

	quote := func(ctx context.Context, size decimal.Decimal) (Quote, error) {
		if size.GreaterThan(limit) {
			return Quote{}, errors.New("custom program error: 0x1773")
		}
		return linearQuote("10", "0")(ctx, size)
	}

	res, err := s.Solve(context.Background(), req, quote)
	require.NoError(t, err)
	assert.True(t, res.Size.LessThanOrEqual(limit))
	assert.True(t, limit.Sub(res.Size).LessThanOrEqual(d("0.01")))
}

func TestSolve_NoQualifyingSize(t *testing.T) {
	tests := []struct {
		name  string
		quote QuoteFunc
	}{
		{"always above band", linearQuote("1000000", "0")},
		{"fee eats collateral", linearQuote("10", "100")},
		{"every quote fails", func(context.Context, decimal.Decimal) (Quote, error) {
			return Quote{}, errors.New("simulation failed")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSolver(t)
			_, err := s.Solve(context.Background(), Request{Collateral: d("100"), CollateralUsd: d("100")}, tt.quote)
			assert.ErrorIs(t, err, ErrNoQualifyingSize)
		})
	}
}

func TestSolve_ContextCancelled(t *testing.T) {
	s := newSolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Solve(ctx, Request{Collateral: d("100"), CollateralUsd: d("100")}, linearQuote("10", "0"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoQualifyingSize)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.High = d("0.5")
	_, err := NewSolver(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Tolerance = decimal.Zero
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}

func TestFromEntryQuoter(t *testing.T) {
	var seen perpetuals.EntryQuoteRequest
	quoter := func(_ context.Context, req perpetuals.EntryQuoteRequest) (*perpetuals.NewPositionPricesAndFee, error) {
		seen = req
		return &perpetuals.NewPositionPricesAndFee{EntryPrice: 150_500_000, Fee: 2_000_000}, nil
	}

	fn := FromEntryQuoter(quoter, Market{
		Template:           perpetuals.EntryQuoteRequest{PoolName: "crypto", Side: perpetuals.SideLong, Collateral: 100_000_000},
		SizeDecimals:       9,
		CollateralDecimals: 6,
		CollateralPrice:    d("1"),
	})

	q, err := fn(context.Background(), d("1.25"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_250_000_000), seen.Size)
	assert.Equal(t, "crypto", seen.PoolName)
	assert.Equal(t, "150.5", q.EntryPrice.String())
	assert.Equal(t, "2", q.FeeUsd.String())
}
