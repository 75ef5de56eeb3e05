package sizing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

// EntryQuoter - котировщик открытия, привязанный к рынку (см. perpetuals.QuoteClient.EntryQuoter).
type EntryQuoter func(ctx context.Context, req perpetuals.EntryQuoteRequest) (*perpetuals.NewPositionPricesAndFee, error)

// Market описывает позицию, размер которой подбирается.
type Market struct {
	Template perpetuals.EntryQuoteRequest // Size перезаписывается на каждой пробе
	// SizeDecimals - decimals торгуемого mint.
	SizeDecimals int32
	// CollateralDecimals - decimals mint залога; комиссия приходит в его единицах.
	CollateralDecimals int32
	// CollateralPrice - цена единицы залога в USD.
	CollateralPrice decimal.Decimal
}

// FromEntryQuoter переводит пробный размер в native-единицы, котирует вход
// и возвращает цену и комиссию в USD.
func FromEntryQuoter(quoter EntryQuoter, m Market) QuoteFunc {
	return func(ctx context.Context, size decimal.Decimal) (Quote, error) {
		req := m.Template
		req.Size = uint64(size.Shift(m.SizeDecimals).IntPart())
		out, err := quoter(ctx, req)
		if err != nil {
			return Quote{}, err
		}
		return Quote{
			EntryPrice: decimal.New(int64(out.EntryPrice), -perpetuals.PriceDecimals),
			FeeUsd:     decimal.New(int64(out.Fee), -m.CollateralDecimals).Mul(m.CollateralPrice),
		}, nil
	}
}
