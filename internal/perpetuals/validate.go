// internal/perpetuals/validate.go
package perpetuals

import (
	"fmt"
	"unicode/utf8"
)

// Проверки параметров выполняются до любых RPC-вызовов. Первое же нарушение
// возвращается как *ValidationError с именем поля и границей.

// ValidatePoolName проверяет имя пула.
func ValidatePoolName(name string) error {
	if name == "" {
		return newValidationError("pool name", name, "non-empty")
	}
	if len(name) > MaxPoolNameLen {
		return newValidationError("pool name", name, fmt.Sprintf("at most %d bytes", MaxPoolNameLen))
	}
	if !utf8.ValidString(name) {
		return newValidationError("pool name", name, "valid UTF-8")
	}
	return nil
}

// ValidateFees проверяет, что каждый компонент комиссии не превышает BPSPower.
func ValidateFees(f Fees) error {
	if f.Mode > FeesOptimal {
		return newValidationError("fees.mode", f.Mode, "fixed, linear or optimal")
	}
	components := []struct {
		name  string
		value uint64
	}{
		{"fees.ratioMult", f.RatioMult},
		{"fees.utilizationMult", f.UtilizationMult},
		{"fees.swapIn", f.SwapIn},
		{"fees.swapOut", f.SwapOut},
		{"fees.stableSwapIn", f.StableSwapIn},
		{"fees.stableSwapOut", f.StableSwapOut},
		{"fees.addLiquidity", f.AddLiquidity},
		{"fees.removeLiquidity", f.RemoveLiquidity},
		{"fees.openPosition", f.OpenPosition},
		{"fees.closePosition", f.ClosePosition},
		{"fees.liquidation", f.Liquidation},
		{"fees.protocolShare", f.ProtocolShare},
		{"fees.feeMax", f.FeeMax},
		{"fees.feeOptimal", f.FeeOptimal},
	}
	bound := fmt.Sprintf("<= %d", BPSPower)
	for _, c := range components {
		if c.value > BPSPower {
			return newValidationError(c.name, c.value, bound)
		}
	}
	return nil
}

// ValidatePricing проверяет плечи, спреды и лимиты заблокированного USD.
func ValidatePricing(p PricingParams) error {
	if p.MinInitialLeverage < BPSPower {
		return newValidationError("pricing.minInitialLeverage", p.MinInitialLeverage, fmt.Sprintf(">= %d", BPSPower))
	}
	if p.MinInitialLeverage > p.MaxInitialLeverage {
		return newValidationError("pricing.minInitialLeverage", p.MinInitialLeverage,
			fmt.Sprintf("<= maxInitialLeverage (%d)", p.MaxInitialLeverage))
	}
	if p.MaxInitialLeverage > p.MaxLeverage {
		return newValidationError("pricing.maxInitialLeverage", p.MaxInitialLeverage,
			fmt.Sprintf("<= maxLeverage (%d)", p.MaxLeverage))
	}

	spreadBound := fmt.Sprintf("< %d", BPSPower)
	for _, s := range []struct {
		name  string
		value uint64
	}{
		{"pricing.tradeSpreadLong", p.TradeSpreadLong},
		{"pricing.tradeSpreadShort", p.TradeSpreadShort},
		{"pricing.swapSpread", p.SwapSpread},
	} {
		if s.value >= BPSPower {
			return newValidationError(s.name, s.value, spreadBound)
		}
	}

	if p.MaxPositionLockedUsd > p.MaxTotalLockedUsd {
		return newValidationError("pricing.maxPositionLockedUsd", p.MaxPositionLockedUsd,
			fmt.Sprintf("<= maxTotalLockedUsd (%d)", p.MaxTotalLockedUsd))
	}
	return nil
}

// ValidateBorrowRate проверяет, что optimalUtilization лежит в (0, RatePower].
func ValidateBorrowRate(b BorrowRateParams) error {
	if b.OptimalUtilization == 0 || b.OptimalUtilization > RatePower {
		return newValidationError("borrowRate.optimalUtilization", b.OptimalUtilization,
			fmt.Sprintf("in (0, %d]", RatePower))
	}
	return nil
}

// ValidateRatios проверяет доли кастоди: хотя бы одна, min <= target <= max <= BPSPower.
// Нулевой min допустим: кастоди без нижней границы доли.
func ValidateRatios(ratios []TokenRatios) error {
	if len(ratios) == 0 {
		return newValidationError("ratios", 0, "at least one entry")
	}
	for i, r := range ratios {
		field := fmt.Sprintf("ratios[%d]", i)
		if r.Min > r.Target || r.Target > r.Max {
			return newValidationError(field, r, "min <= target <= max")
		}
		if r.Max > BPSPower {
			return newValidationError(field+".max", r.Max, fmt.Sprintf("<= %d", BPSPower))
		}
	}
	return nil
}

// ValidateOracle проверяет параметры оракула.
func ValidateOracle(o OracleParams) error {
	if o.OracleType > OraclePyth {
		return newValidationError("oracle.oracleType", o.OracleType, "none, custom or pyth")
	}
	if o.OracleType != OracleNone && o.OracleAccount.IsZero() {
		return newValidationError("oracle.oracleAccount", o.OracleAccount, "set for custom and pyth oracles")
	}
	return nil
}

// ValidateCustodyConfig прогоняет все проверки конфигурации кастоди.
// expectedRatios - число кастоди в пуле после операции.
func ValidateCustodyConfig(cfg CustodyConfig, expectedRatios int) error {
	if err := ValidateOracle(cfg.Oracle); err != nil {
		return err
	}
	if err := ValidatePricing(cfg.Pricing); err != nil {
		return err
	}
	if err := ValidateFees(cfg.Fees); err != nil {
		return err
	}
	if err := ValidateBorrowRate(cfg.BorrowRate); err != nil {
		return err
	}
	if err := ValidateRatios(cfg.Ratios); err != nil {
		return err
	}
	if expectedRatios > 0 && len(cfg.Ratios) != expectedRatios {
		return newValidationError("ratios", len(cfg.Ratios), fmt.Sprintf("exactly %d entries (one per custody)", expectedRatios))
	}
	return nil
}

// ValidateInit проверяет параметры init и список админов.
func ValidateInit(minSignatures uint8, admins int) error {
	if admins == 0 || admins > MaxAdminSigners {
		return newValidationError("admins", admins, fmt.Sprintf("between 1 and %d", MaxAdminSigners))
	}
	if minSignatures == 0 || int(minSignatures) > admins {
		return newValidationError("minSignatures", minSignatures, fmt.Sprintf("between 1 and %d", admins))
	}
	return nil
}
