// internal/types/slippage.go
package types

import (
	"fmt"
	"math"
	"strconv"

	sdkmath "cosmossdk.io/math"
)

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed использует фиксированное значение как есть
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent использует процент от котировки
	SlippagePercent SlippageType = "percent"
	// SlippageNone не ограничивает результат
	SlippageNone SlippageType = "none"
)

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	// Type определяет тип политики проскальзывания
	Type SlippageType `json:"type" mapstructure:"type"`
	// Value содержит значение для выбранной политики:
	// - для SlippageFixed: точное значение результата в raw-единицах
	// - для SlippagePercent: процент допустимого проскальзывания (например, 1.0 = 1%)
	// - для SlippageNone: игнорируется
	Value float64 `json:"value" mapstructure:"value"`
}

// Percent создает процентную политику
func Percent(p float64) SlippageConfig {
	return SlippageConfig{Type: SlippagePercent, Value: p}
}

// Validate проверяет корректность политики
func (c SlippageConfig) Validate() error {
	switch c.Type {
	case SlippageNone:
		return nil
	case SlippageFixed:
		if c.Value < 0 {
			return fmt.Errorf("fixed slippage value must be non-negative, got %v", c.Value)
		}
		return nil
	case SlippagePercent:
		if c.Value < 0 || c.Value >= 100 || math.IsNaN(c.Value) {
			return fmt.Errorf("slippage percent must be in [0, 100), got %v", c.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown slippage type %q", c.Type)
	}
}

func (c SlippageConfig) fraction() sdkmath.LegacyDec {
	pct := sdkmath.LegacyMustNewDecFromStr(strconv.FormatFloat(c.Value, 'f', -1, 64))
	return pct.QuoInt64(100)
}

// CalculateMinAmountOut вычисляет нижнюю границу результата (minAmountOut, минимальная цена).
func CalculateMinAmountOut(expected uint64, config SlippageConfig) uint64 {
	switch config.Type {
	case SlippageFixed:
		return uint64(config.Value)
	case SlippagePercent:
		// при 1% минимум будет 99% от ожидаемого, с округлением вниз
		multiplier := sdkmath.LegacyOneDec().Sub(config.fraction())
		return toUint64(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(expected)).Mul(multiplier).TruncateInt())
	default:
		// 0 - программа не проверяет нижнюю границу
		return 0
	}
}

// CalculateMaxAmountIn вычисляет верхнюю границу (максимальная цена входа).
func CalculateMaxAmountIn(expected uint64, config SlippageConfig) uint64 {
	switch config.Type {
	case SlippageFixed:
		return uint64(config.Value)
	case SlippagePercent:
		multiplier := sdkmath.LegacyOneDec().Add(config.fraction())
		return toUint64(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(expected)).Mul(multiplier).Ceil().TruncateInt())
	default:
		return math.MaxUint64
	}
}

// toUint64 насыщает результат до MaxUint64
func toUint64(v sdkmath.Int) uint64 {
	if v.IsNegative() {
		return 0
	}
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}
