// internal/monitor/snapshot.go
package monitor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot - состояние позиции на момент опроса. Цены и суммы в USD.
type Snapshot struct {
	Address          string
	Market           string
	Side             string
	EntryPrice       decimal.Decimal
	ExitPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	SizeUsd          decimal.Decimal
	CollateralUsd    decimal.Decimal
	Profit           decimal.Decimal
	Loss             decimal.Decimal
	Liquidatable     bool
	UpdatedAt        time.Time
}

var hundred = decimal.NewFromInt(100)

// PnL - прибыль минус убыток.
func (s Snapshot) PnL() decimal.Decimal {
	return s.Profit.Sub(s.Loss)
}

// PnLPercent - PnL относительно залога; 0 при нулевом залоге.
func (s Snapshot) PnLPercent() decimal.Decimal {
	if !s.CollateralUsd.IsPositive() {
		return decimal.Zero
	}
	return s.PnL().Div(s.CollateralUsd).Mul(hundred)
}

// LiquidationDistance - расстояние от цены выхода до цены ликвидации в
// процентах цены выхода. ok == false, если цены неизвестны.
func (s Snapshot) LiquidationDistance() (decimal.Decimal, bool) {
	if !s.ExitPrice.IsPositive() || !s.LiquidationPrice.IsPositive() {
		return decimal.Zero, false
	}
	return s.ExitPrice.Sub(s.LiquidationPrice).Abs().Div(s.ExitPrice).Mul(hundred), true
}
