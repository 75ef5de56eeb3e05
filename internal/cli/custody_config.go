// internal/cli/custody_config.go
package cli

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/perps-client/internal/oracle"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

// custodyFile - YAML-описание параметров кастоди в единицах программы
// (BPSPower для спредов, плеч и комиссий, RatePower для ставок).
// Отсутствующие ключи берутся из defaultCustodyFile.
type custodyFile struct {
	Stable bool `yaml:"stable"`
	Oracle struct {
		Type           string `yaml:"type"`
		Account        string `yaml:"account"`
		Authority      string `yaml:"authority"`
		FeedID         string `yaml:"feed_id"`
		MaxPriceError  uint64 `yaml:"max_price_error"`
		MaxPriceAgeSec uint32 `yaml:"max_price_age_sec"`
	} `yaml:"oracle"`
	Pricing struct {
		UseEma                bool   `yaml:"use_ema"`
		UseUnrealizedPnlInAum bool   `yaml:"use_unrealized_pnl_in_aum"`
		TradeSpreadLong       uint64 `yaml:"trade_spread_long"`
		TradeSpreadShort      uint64 `yaml:"trade_spread_short"`
		SwapSpread            uint64 `yaml:"swap_spread"`
		MinInitialLeverage    uint64 `yaml:"min_initial_leverage"`
		MaxInitialLeverage    uint64 `yaml:"max_initial_leverage"`
		MaxLeverage           uint64 `yaml:"max_leverage"`
		MaxPayoffMult         uint64 `yaml:"max_payoff_mult"`
		MaxUtilization        uint64 `yaml:"max_utilization"`
		MaxPositionLockedUsd  uint64 `yaml:"max_position_locked_usd"`
		MaxTotalLockedUsd     uint64 `yaml:"max_total_locked_usd"`
	} `yaml:"pricing"`
	Permissions struct {
		Swap                 bool `yaml:"swap"`
		AddLiquidity         bool `yaml:"add_liquidity"`
		RemoveLiquidity      bool `yaml:"remove_liquidity"`
		OpenPosition         bool `yaml:"open_position"`
		ClosePosition        bool `yaml:"close_position"`
		PnlWithdrawal        bool `yaml:"pnl_withdrawal"`
		CollateralWithdrawal bool `yaml:"collateral_withdrawal"`
		SizeChange           bool `yaml:"size_change"`
	} `yaml:"permissions"`
	Fees struct {
		Mode            string `yaml:"mode"`
		RatioMult       uint64 `yaml:"ratio_mult"`
		UtilizationMult uint64 `yaml:"utilization_mult"`
		SwapIn          uint64 `yaml:"swap_in"`
		SwapOut         uint64 `yaml:"swap_out"`
		StableSwapIn    uint64 `yaml:"stable_swap_in"`
		StableSwapOut   uint64 `yaml:"stable_swap_out"`
		AddLiquidity    uint64 `yaml:"add_liquidity"`
		RemoveLiquidity uint64 `yaml:"remove_liquidity"`
		OpenPosition    uint64 `yaml:"open_position"`
		ClosePosition   uint64 `yaml:"close_position"`
		Liquidation     uint64 `yaml:"liquidation"`
		ProtocolShare   uint64 `yaml:"protocol_share"`
		FeeMax          uint64 `yaml:"fee_max"`
		FeeOptimal      uint64 `yaml:"fee_optimal"`
	} `yaml:"fees"`
	BorrowRate struct {
		BaseRate           uint64 `yaml:"base_rate"`
		Slope1             uint64 `yaml:"slope1"`
		Slope2             uint64 `yaml:"slope2"`
		OptimalUtilization uint64 `yaml:"optimal_utilization"`
	} `yaml:"borrow_rate"`
	Ratios []struct {
		Target uint64 `yaml:"target"`
		Min    uint64 `yaml:"min"`
		Max    uint64 `yaml:"max"`
	} `yaml:"ratios"`
}

func defaultCustodyFile() custodyFile {
	var f custodyFile
	f.Oracle.Type = "pyth"
	f.Oracle.MaxPriceError = 100
	f.Oracle.MaxPriceAgeSec = 60

	f.Pricing.UseEma = true
	f.Pricing.UseUnrealizedPnlInAum = true
	f.Pricing.TradeSpreadLong = 100
	f.Pricing.TradeSpreadShort = 100
	f.Pricing.SwapSpread = 200
	f.Pricing.MinInitialLeverage = perpetuals.BPSPower
	f.Pricing.MaxInitialLeverage = 100 * perpetuals.BPSPower
	f.Pricing.MaxLeverage = 100 * perpetuals.BPSPower
	f.Pricing.MaxPayoffMult = perpetuals.BPSPower
	f.Pricing.MaxUtilization = perpetuals.BPSPower

	f.Permissions.Swap = true
	f.Permissions.AddLiquidity = true
	f.Permissions.RemoveLiquidity = true
	f.Permissions.OpenPosition = true
	f.Permissions.ClosePosition = true
	f.Permissions.PnlWithdrawal = true
	f.Permissions.CollateralWithdrawal = true
	f.Permissions.SizeChange = true

	f.Fees.Mode = "linear"
	f.Fees.RatioMult = perpetuals.BPSPower
	f.Fees.UtilizationMult = perpetuals.BPSPower
	f.Fees.SwapIn = 100
	f.Fees.SwapOut = 100
	f.Fees.StableSwapIn = 100
	f.Fees.StableSwapOut = 100
	f.Fees.AddLiquidity = 100
	f.Fees.RemoveLiquidity = 100
	f.Fees.OpenPosition = 100
	f.Fees.ClosePosition = 100
	f.Fees.Liquidation = 100
	f.Fees.ProtocolShare = 10
	f.Fees.FeeMax = 250
	f.Fees.FeeOptimal = 10

	f.BorrowRate.Slope1 = 80_000
	f.BorrowRate.Slope2 = 120_000
	f.BorrowRate.OptimalUtilization = 800_000_000
	return f
}

// loadCustodyFile накладывает YAML из path (если задан) на значения по умолчанию.
func loadCustodyFile(path string) (custodyFile, error) {
	f := defaultCustodyFile()
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read custody config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse custody config %s: %w", path, err)
	}
	return f, nil
}

// toConfig переводит файл в параметры программы.
func (f custodyFile) toConfig() (perpetuals.CustodyConfig, error) {
	cfg := perpetuals.CustodyConfig{IsStable: f.Stable}

	oracleType, err := perpetuals.ParseOracleType(f.Oracle.Type)
	if err != nil {
		return cfg, err
	}
	cfg.Oracle = perpetuals.OracleParams{
		OracleType:     oracleType,
		MaxPriceError:  f.Oracle.MaxPriceError,
		MaxPriceAgeSec: f.Oracle.MaxPriceAgeSec,
	}
	if f.Oracle.Account != "" {
		if cfg.Oracle.OracleAccount, err = solana.PublicKeyFromBase58(f.Oracle.Account); err != nil {
			return cfg, fmt.Errorf("oracle.account: %w", err)
		}
	}
	if f.Oracle.Authority != "" {
		if cfg.Oracle.OracleAuthority, err = solana.PublicKeyFromBase58(f.Oracle.Authority); err != nil {
			return cfg, fmt.Errorf("oracle.authority: %w", err)
		}
	}
	if f.Oracle.FeedID != "" {
		id, err := oracle.ParseFeedID(f.Oracle.FeedID)
		if err != nil {
			return cfg, fmt.Errorf("oracle.feed_id: %w", err)
		}
		cfg.Oracle.FeedID = id
	}

	p := f.Pricing
	cfg.Pricing = perpetuals.PricingParams{
		UseEma:                p.UseEma,
		UseUnrealizedPnlInAum: p.UseUnrealizedPnlInAum,
		TradeSpreadLong:       p.TradeSpreadLong,
		TradeSpreadShort:      p.TradeSpreadShort,
		SwapSpread:            p.SwapSpread,
		MinInitialLeverage:    p.MinInitialLeverage,
		MaxInitialLeverage:    p.MaxInitialLeverage,
		MaxLeverage:           p.MaxLeverage,
		MaxPayoffMult:         p.MaxPayoffMult,
		MaxUtilization:        p.MaxUtilization,
		MaxPositionLockedUsd:  p.MaxPositionLockedUsd,
		MaxTotalLockedUsd:     p.MaxTotalLockedUsd,
	}

	perm := f.Permissions
	cfg.Permissions = perpetuals.Permissions{
		AllowSwap:                 perm.Swap,
		AllowAddLiquidity:         perm.AddLiquidity,
		AllowRemoveLiquidity:      perm.RemoveLiquidity,
		AllowOpenPosition:         perm.OpenPosition,
		AllowClosePosition:        perm.ClosePosition,
		AllowPnlWithdrawal:        perm.PnlWithdrawal,
		AllowCollateralWithdrawal: perm.CollateralWithdrawal,
		AllowSizeChange:           perm.SizeChange,
	}

	mode, err := perpetuals.ParseFeesMode(f.Fees.Mode)
	if err != nil {
		return cfg, err
	}
	fees := f.Fees
	cfg.Fees = perpetuals.Fees{
		Mode:            mode,
		RatioMult:       fees.RatioMult,
		UtilizationMult: fees.UtilizationMult,
		SwapIn:          fees.SwapIn,
		SwapOut:         fees.SwapOut,
		StableSwapIn:    fees.StableSwapIn,
		StableSwapOut:   fees.StableSwapOut,
		AddLiquidity:    fees.AddLiquidity,
		RemoveLiquidity: fees.RemoveLiquidity,
		OpenPosition:    fees.OpenPosition,
		ClosePosition:   fees.ClosePosition,
		Liquidation:     fees.Liquidation,
		ProtocolShare:   fees.ProtocolShare,
		FeeMax:          fees.FeeMax,
		FeeOptimal:      fees.FeeOptimal,
	}

	cfg.BorrowRate = perpetuals.BorrowRateParams{
		BaseRate:           f.BorrowRate.BaseRate,
		Slope1:             f.BorrowRate.Slope1,
		Slope2:             f.BorrowRate.Slope2,
		OptimalUtilization: f.BorrowRate.OptimalUtilization,
	}

	for _, r := range f.Ratios {
		cfg.Ratios = append(cfg.Ratios, perpetuals.TokenRatios{Target: r.Target, Min: r.Min, Max: r.Max})
	}
	return cfg, nil
}

// evenRatios делит BPSPower поровну между n кастоди; остаток уходит последней.
func evenRatios(n int) []perpetuals.TokenRatios {
	if n <= 0 {
		return nil
	}
	out := make([]perpetuals.TokenRatios, n)
	share := perpetuals.BPSPower / uint64(n)
	for i := range out {
		out[i] = perpetuals.TokenRatios{Target: share, Min: 10, Max: perpetuals.BPSPower}
	}
	out[n-1].Target += perpetuals.BPSPower - share*uint64(n)
	for i := range out {
		if out[i].Target < out[i].Min {
			out[i].Min = out[i].Target
		}
	}
	return out
}
