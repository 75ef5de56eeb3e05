package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot() Snapshot {
	return Snapshot{
		Address:          "pos1",
		Market:           "SOL",
		Side:             "long",
		EntryPrice:       d("100"),
		ExitPrice:        d("100"),
		LiquidationPrice: d("80"),
		SizeUsd:          d("1000"),
		CollateralUsd:    d("200"),
		UpdatedAt:        time.Now(),
	}
}

func types(alerts []Alert) []AlertType {
	out := make([]AlertType, len(alerts))
	for i, a := range alerts {
		out[i] = a.Type
	}
	return out
}

func TestSnapshotMath(t *testing.T) {
	s := snapshot()
	s.Profit = d("50")
	assert.True(t, s.PnLPercent().Equal(d("25")))

	dist, ok := s.LiquidationDistance()
	require.True(t, ok)
	assert.True(t, dist.Equal(d("20")))

	s.ExitPrice = decimal.Zero
	_, ok = s.LiquidationDistance()
	assert.False(t, ok)

	s.CollateralUsd = decimal.Zero
	assert.True(t, s.PnLPercent().IsZero())
}

func TestAlertManager_Thresholds(t *testing.T) {
	am := NewAlertManager(DefaultAlertConfig(), zap.NewNop())

	assert.Empty(t, am.Check(snapshot()))

	near := snapshot()
	near.Address = "near"
	near.ExitPrice = d("83")
	assert.Equal(t, []AlertType{AlertTypeNearLiquidation}, types(am.Check(near)))

	liq := snapshot()
	liq.Address = "liq"
	liq.ExitPrice = d("79")
	liq.Liquidatable = true
	assert.Equal(t, []AlertType{AlertTypeLiquidatable}, types(am.Check(liq)))

	win := snapshot()
	win.Address = "win"
	win.Profit = d("100")
	assert.Equal(t, []AlertType{AlertTypeProfitTarget}, types(am.Check(win)))

	lose := snapshot()
	lose.Address = "lose"
	lose.Loss = d("40")
	assert.Equal(t, []AlertType{AlertTypeLossLimit}, types(am.Check(lose)))

	stale := snapshot()
	stale.Address = "stale"
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	assert.Equal(t, []AlertType{AlertTypeStale}, types(am.Check(stale)))

	assert.Len(t, am.Recent(0), 5)
	assert.Len(t, am.Recent(2), 2)
}

func TestAlertManager_Cooldown(t *testing.T) {
	cfg := DefaultAlertConfig()
	cfg.Cooldown = time.Minute
	am := NewAlertManager(cfg, zap.NewNop())
	now := time.Now()
	am.now = func() time.Time { return now }

	s := snapshot()
	s.Loss = d("100")
	s.UpdatedAt = now
	require.Len(t, am.Check(s), 1)
	assert.Empty(t, am.Check(s))

	now = now.Add(2 * time.Minute)
	s.UpdatedAt = now
	assert.Len(t, am.Check(s), 1)

	am.ClearHistory()
	assert.Len(t, am.Check(s), 1)
}

func TestAlertManager_DisabledThresholds(t *testing.T) {
	am := NewAlertManager(AlertConfig{}, zap.NewNop())
	s := snapshot()
	s.ExitPrice = d("81")
	s.Loss = d("190")
	s.UpdatedAt = time.Now().Add(-time.Hour)
	assert.Empty(t, am.Check(s))
}

func TestAlertManager_ConcurrentChecks(t *testing.T) {
	cfg := DefaultAlertConfig()
	cfg.Cooldown = 0
	am := NewAlertManager(cfg, zap.NewNop())

	var mu sync.Mutex
	handled := 0
	am.AddHandler(func(Alert) {
		mu.Lock()
		handled++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s := snapshot()
				s.Loss = d("100")
				am.Check(s)
				am.Recent(5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, handled)
	assert.Len(t, am.Recent(0), 200)
}
