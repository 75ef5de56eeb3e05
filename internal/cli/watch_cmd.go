// internal/cli/watch_cmd.go
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/monitor"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func newWatchPositionCommand(a *app) *cobra.Command {
	var (
		m                                marketFlags
		interval                         time.Duration
		nearLiq, profitTarget, lossLimit string
		maxFailures                      int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a position and alert on liquidation risk and PnL thresholds",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position watch", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Position", m.fields()...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			alertCfg := monitor.DefaultAlertConfig()
			for _, p := range []struct {
				flag  string
				value string
				dst   *decimal.Decimal
			}{
				{"near-liquidation", nearLiq, &alertCfg.NearLiquidationPercent},
				{"profit-target", profitTarget, &alertCfg.ProfitTargetPercent},
				{"loss-limit", lossLimit, &alertCfg.LossLimitPercent},
			} {
				v, err := decimal.NewFromString(p.value)
				if err != nil || v.IsNegative() {
					return fmt.Errorf("invalid --%s %q: expected a non-negative percent", p.flag, p.value)
				}
				*p.dst = v
			}
			alertCfg.StaleAfter = 3 * interval

			fetch, err := a.snapshotFetcher(&m, ref)
			if err != nil {
				return err
			}
			watchCfg := monitor.DefaultWatcherConfig()
			watchCfg.Interval = interval
			watchCfg.MaxFailures = maxFailures

			alerts := monitor.NewAlertManager(alertCfg, a.logger())
			alerts.AddHandler(func(alert monitor.Alert) {
				fmt.Fprintln(a.out, formatAlert(alert))
			})
			watcher, err := monitor.NewWatcher(watchCfg, fetch, alerts, a.logger())
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, style.Title(fmt.Sprintf("Watching %s %s every %s (Ctrl+C to stop)", m.side, m.token, interval)))
			return watcher.Run(ctx, func(s monitor.Snapshot, _ []monitor.Alert) {
				fmt.Fprintln(a.out, formatSnapshot(s))
			})
		}),
	}
	m.register(cmd, true)
	defaults := monitor.DefaultAlertConfig()
	cmd.Flags().DurationVar(&interval, "interval", monitor.DefaultWatcherConfig().Interval, "poll interval")
	cmd.Flags().StringVar(&nearLiq, "near-liquidation", defaults.NearLiquidationPercent.String(), "alert when the exit price is within this percent of liquidation (0 disables)")
	cmd.Flags().StringVar(&profitTarget, "profit-target", defaults.ProfitTargetPercent.String(), "alert when profit reaches this percent of collateral (0 disables)")
	cmd.Flags().StringVar(&lossLimit, "loss-limit", defaults.LossLimitPercent.String(), "alert when loss reaches this percent of collateral (0 disables)")
	cmd.Flags().IntVar(&maxFailures, "max-failures", monitor.DefaultWatcherConfig().MaxFailures, "stop after this many failed polls in a row (0 never stops)")
	return cmd
}

// snapshotFetcher собирает снимок позиции из аккаунта и симуляций.
func (a *app) snapshotFetcher(m *marketFlags, ref perpetuals.PositionRef) (monitor.FetchFunc, error) {
	reader, err := a.connect()
	if err != nil {
		return nil, err
	}
	quotes, err := a.quoteClient()
	if err != nil {
		return nil, err
	}
	resolver := reader.Resolver()
	pool, err := resolver.Pool(ref.PoolName)
	if err != nil {
		return nil, err
	}
	address, err := resolver.Position(ref.Owner, pool, resolver.Custody(pool, ref.Mint), ref.Side)
	if err != nil {
		return nil, err
	}
	market := m.token + "/" + m.collateral

	return func(ctx context.Context) (monitor.Snapshot, error) {
		pos, err := reader.GetPosition(ctx, ref.Owner, ref.PoolName, ref.Mint, ref.Side)
		if err != nil {
			return monitor.Snapshot{}, err
		}
		pnl, err := quotes.Pnl(ctx, ref)
		if err != nil {
			return monitor.Snapshot{}, err
		}
		exit, err := quotes.ExitPriceAndFee(ctx, ref)
		if err != nil {
			return monitor.Snapshot{}, err
		}
		liq, err := quotes.LiquidationPrice(ctx, ref, 0, 0)
		if err != nil {
			return monitor.Snapshot{}, err
		}
		state, err := quotes.LiquidationState(ctx, ref)
		if err != nil {
			return monitor.Snapshot{}, err
		}
		return monitor.Snapshot{
			Address:          address.String(),
			Market:           market,
			Side:             pos.Side.String(),
			EntryPrice:       usdDecimal(pos.Price),
			ExitPrice:        usdDecimal(exit.Price),
			LiquidationPrice: usdDecimal(liq),
			SizeUsd:          usdDecimal(pos.SizeUsd),
			CollateralUsd:    usdDecimal(pos.CollateralUsd),
			Profit:           usdDecimal(pnl.Profit),
			Loss:             usdDecimal(pnl.Loss),
			Liquidatable:     state != 0,
			UpdatedAt:        time.Now(),
		}, nil
	}, nil
}

func formatSnapshot(s monitor.Snapshot) string {
	pnl := s.PnL()
	pnlText := "$" + pnl.Abs().StringFixed(2)
	if pnl.IsPositive() {
		pnlText = "+" + pnlText
	}
	line := fmt.Sprintf("%s  exit $%s  liq $%s  PnL %s (%s%%)",
		s.UpdatedAt.Format("15:04:05"), s.ExitPrice.StringFixed(4), s.LiquidationPrice.StringFixed(4),
		style.Signed(pnlText, pnl.IsNegative()), s.PnLPercent().StringFixed(2))
	if dist, ok := s.LiquidationDistance(); ok {
		line += fmt.Sprintf("  %s%% to liq", dist.StringFixed(2))
	}
	return line
}

func formatAlert(alert monitor.Alert) string {
	switch alert.Severity {
	case monitor.SeverityCritical:
		return style.Error(alert.Message)
	case monitor.SeverityWarning:
		return style.Warning(alert.Message)
	}
	return style.Success(alert.Message)
}
