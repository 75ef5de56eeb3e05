// internal/perpetuals/types.go
package perpetuals

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Side - направление позиции. Значения совпадают с borsh-энумом программы.
type Side uint8

const (
	SideNone Side = iota
	SideLong
	SideShort
)

// ParseSide разбирает строковое представление стороны.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return SideLong, nil
	case "short":
		return SideShort, nil
	case "none", "":
		return SideNone, nil
	default:
		return SideNone, fmt.Errorf("unknown side %q", s)
	}
}

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "none"
	}
}

// SeedByte возвращает байт стороны в seeds позиции: long=1, short=0.
// Для none адрес позиции не определен.
func (s Side) SeedByte() (byte, error) {
	switch s {
	case SideLong:
		return 1, nil
	case SideShort:
		return 0, nil
	default:
		return 0, ErrInvalidSide
	}
}

// OracleType - тип оракула кастоди.
type OracleType uint8

const (
	OracleNone OracleType = iota
	OracleCustom
	OraclePyth
)

func ParseOracleType(s string) (OracleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return OracleNone, nil
	case "custom":
		return OracleCustom, nil
	case "pyth":
		return OraclePyth, nil
	default:
		return OracleNone, fmt.Errorf("unknown oracle type %q", s)
	}
}

func (o OracleType) String() string {
	switch o {
	case OracleCustom:
		return "custom"
	case OraclePyth:
		return "pyth"
	default:
		return "none"
	}
}

// FeesMode - модель расчета комиссий.
type FeesMode uint8

const (
	FeesFixed FeesMode = iota
	FeesLinear
	FeesOptimal
)

func ParseFeesMode(s string) (FeesMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return FeesFixed, nil
	case "linear":
		return FeesLinear, nil
	case "optimal":
		return FeesOptimal, nil
	default:
		return FeesFixed, fmt.Errorf("unknown fees mode %q", s)
	}
}

func (m FeesMode) String() string {
	switch m {
	case FeesLinear:
		return "linear"
	case FeesOptimal:
		return "optimal"
	default:
		return "fixed"
	}
}

// ---- конфигурация кастоди ----

type OracleParams struct {
	OracleAccount   solana.PublicKey
	OracleType      OracleType
	OracleAuthority solana.PublicKey
	MaxPriceError   uint64
	MaxPriceAgeSec  uint32
	FeedID          [32]byte
}

type PricingParams struct {
	UseEma                bool
	UseUnrealizedPnlInAum bool
	TradeSpreadLong       uint64
	TradeSpreadShort      uint64
	SwapSpread            uint64
	MinInitialLeverage    uint64
	MaxInitialLeverage    uint64
	MaxLeverage           uint64
	MaxPayoffMult         uint64
	MaxUtilization        uint64
	MaxPositionLockedUsd  uint64
	MaxTotalLockedUsd     uint64
}

type Permissions struct {
	AllowSwap                 bool
	AllowAddLiquidity         bool
	AllowRemoveLiquidity      bool
	AllowOpenPosition         bool
	AllowClosePosition        bool
	AllowPnlWithdrawal        bool
	AllowCollateralWithdrawal bool
	AllowSizeChange           bool
}

// AllowAll возвращает набор разрешений со всеми флагами.
func AllowAll() Permissions {
	return Permissions{true, true, true, true, true, true, true, true}
}

// Fees - все компоненты в единицах BPSPower.
type Fees struct {
	Mode            FeesMode
	RatioMult       uint64
	UtilizationMult uint64
	SwapIn          uint64
	SwapOut         uint64
	StableSwapIn    uint64
	StableSwapOut   uint64
	AddLiquidity    uint64
	RemoveLiquidity uint64
	OpenPosition    uint64
	ClosePosition   uint64
	Liquidation     uint64
	ProtocolShare   uint64
	FeeMax          uint64
	FeeOptimal      uint64
}

// BorrowRateParams - ставки в единицах RatePower.
type BorrowRateParams struct {
	BaseRate           uint64
	Slope1             uint64
	Slope2             uint64
	OptimalUtilization uint64
}

// TokenRatios - целевая, минимальная и максимальная доля кастоди в пуле (BPS).
type TokenRatios struct {
	Target uint64
	Min    uint64
	Max    uint64
}

// CustodyConfig - общая часть параметров addCustody и setCustodyConfig.
type CustodyConfig struct {
	IsStable    bool
	IsVirtual   bool
	Oracle      OracleParams
	Pricing     PricingParams
	Permissions Permissions
	Fees        Fees
	BorrowRate  BorrowRateParams
	Ratios      []TokenRatios
}

// ---- результаты view-инструкций ----

// AmountAndFee - результат get*LiquidityAmountAndFee.
type AmountAndFee struct {
	Amount uint64
	Fee    uint64
}

// NewPositionPricesAndFee - результат getEntryPriceAndFee.
type NewPositionPricesAndFee struct {
	EntryPrice       uint64
	LiquidationPrice uint64
	Fee              uint64
}

// PriceAndFee - результат getExitPriceAndFee.
type PriceAndFee struct {
	Price uint64
	Fee   uint64
}

// ProfitAndLoss - результат getPnl.
type ProfitAndLoss struct {
	Profit uint64
	Loss   uint64
}

// SwapAmountAndFees - результат getSwapAmountAndFees.
type SwapAmountAndFees struct {
	AmountOut uint64
	FeeIn     uint64
	FeeOut    uint64
}

// AssetsUnderManagement - u128 USD-значение пула.
type AssetsUnderManagement = uint128.Uint128
