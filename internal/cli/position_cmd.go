// internal/cli/position_cmd.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/assets"
	"github.com/rovshanmuradov/perps-client/internal/export"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/sizing"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

// marketFlags определяют позицию: пул, инструмент, залог и сторону.
type marketFlags struct {
	pool       string
	token      string
	collateral string
	side       string
	owner      string
}

func (f *marketFlags) register(cmd *cobra.Command, withOwner bool) {
	cmd.Flags().StringVarP(&f.pool, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "instrument symbol or mint")
	cmd.Flags().StringVarP(&f.collateral, "collateral", "c", "", "collateral token symbol or mint")
	cmd.Flags().StringVarP(&f.side, "side", "s", "", "long or short")
	if withOwner {
		cmd.Flags().StringVar(&f.owner, "owner", "", "position owner (defaults to the wallet)")
	}
}

func (f *marketFlags) fields() []field {
	return []field{
		textField("pool", "Pool name", &f.pool),
		textField("token", "Instrument (symbol or mint)", &f.token),
		textField("collateral", "Collateral (symbol or mint)", &f.collateral),
		sideField(&f.side),
	}
}

// positionRef разрешает флаги в адрес позиции. Поля должны быть уже заполнены.
func (a *app) positionRef(f *marketFlags) (perpetuals.PositionRef, error) {
	mint, err := a.mint(f.token)
	if err != nil {
		return perpetuals.PositionRef{}, err
	}
	collateral, err := a.mint(f.collateral)
	if err != nil {
		return perpetuals.PositionRef{}, err
	}
	side, err := tradeSide(f.side)
	if err != nil {
		return perpetuals.PositionRef{}, err
	}
	owner, err := a.owner(f.owner)
	if err != nil {
		return perpetuals.PositionRef{}, err
	}
	return perpetuals.PositionRef{
		Owner:          owner,
		PoolName:       f.pool,
		Mint:           mint,
		CollateralMint: collateral,
		Side:           side,
	}, nil
}

func tradeSide(s string) (perpetuals.Side, error) {
	side, err := perpetuals.ParseSide(s)
	if err != nil {
		return perpetuals.SideNone, err
	}
	if side == perpetuals.SideNone {
		return perpetuals.SideNone, perpetuals.ErrInvalidSide
	}
	return side, nil
}

// optionalPrice переводит необязательную USD-цену в единицы программы.
func optionalPrice(s string) (*uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p, err := toNative(s, perpetuals.PriceDecimals)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func newPositionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "position",
		Aliases: []string{"pos"},
		Short:   "Open, manage and inspect leveraged positions",
	}
	cmd.AddCommand(
		newOpenPositionCommand(a),
		newClosePositionCommand(a),
		newAddCollateralCommand(a),
		newRemoveCollateralCommand(a),
		newShowPositionCommand(a),
		newListPositionsCommand(a),
		newLiquidateCommand(a),
		newSizeCommand(a),
		newWatchPositionCommand(a),
	)
	return cmd
}

func newOpenPositionCommand(a *app) *cobra.Command {
	var (
		m                       marketFlags
		size, collateral, limit string
		takeProfit, stopLoss    string
		slippagePct             float64
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a position (virtual instruments create their mint in the same transaction)",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position open", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			fields := append(m.fields(),
				amountField("size", "Size (instrument units)", &size),
				amountField("collateral-amount", "Collateral amount", &collateral),
			)
			if err := a.fill("Open position", fields...); err != nil {
				return err
			}

			side, err := tradeSide(m.side)
			if err != nil {
				return err
			}
			collateralMint, err := a.mint(m.collateral)
			if err != nil {
				return err
			}
			collateralDecimals, err := a.decimals(ctx, collateralMint)
			if err != nil {
				return err
			}
			collateralNative, err := toNative(collateral, collateralDecimals)
			if err != nil {
				return err
			}

			req := perpetuals.OpenPositionRequest{
				PoolName:       m.pool,
				CollateralMint: collateralMint,
				Side:           side,
				Collateral:     collateralNative,
				Slippage:       slippage(slippagePct),
			}
			if req.TakeProfitPrice, err = optionalPrice(takeProfit); err != nil {
				return fmt.Errorf("take profit: %w", err)
			}
			if req.StopLossPrice, err = optionalPrice(stopLoss); err != nil {
				return fmt.Errorf("stop loss: %w", err)
			}
			if p, err := optionalPrice(limit); err != nil {
				return fmt.Errorf("price: %w", err)
			} else if p != nil {
				req.Price = *p
			}

			var sizeDecimals uint8
			if asset, err := a.catalog.Resolve(m.token); err == nil && asset.Virtual() {
				if req.Price == 0 {
					return fmt.Errorf("%s is a virtual instrument: --price is required", asset.Symbol)
				}
				req.Virtual = &perpetuals.VirtualInstrument{Decimals: asset.Decimals, FeedID: asset.FeedID}
				sizeDecimals = asset.Decimals
			} else {
				if req.Mint, err = a.mint(m.token); err != nil {
					return err
				}
				if sizeDecimals, err = a.decimals(ctx, req.Mint); err != nil {
					return err
				}
			}
			if req.Size, err = toNative(size, sizeDecimals); err != nil {
				return err
			}

			builder, err := a.trader()
			if err != nil {
				return err
			}
			req.Owner = a.wallet.PublicKey

			summary := []style.KV{
				{Key: "Pool", Value: m.pool},
				{Key: "Market", Value: fmt.Sprintf("%s %s", side, m.token)},
				{Key: "Size", Value: size},
				{Key: "Collateral", Value: collateral + " " + m.collateral},
			}
			if req.Virtual == nil {
				quote, err := a.quotes.EntryPriceAndFee(ctx, perpetuals.EntryQuoteRequest{
					PoolName:       m.pool,
					Mint:           req.Mint,
					CollateralMint: collateralMint,
					Collateral:     collateralNative,
					Size:           req.Size,
					Side:           side,
				})
				if err != nil {
					return err
				}
				summary = append(summary,
					style.KV{Key: "Entry price", Value: "$" + price(quote.EntryPrice)},
					style.KV{Key: "Liquidation price", Value: "$" + price(quote.LiquidationPrice)},
					style.KV{Key: "Fee", Value: fromNative(quote.Fee, collateralDecimals) + " " + m.collateral},
				)
			}
			if req.Price != 0 {
				summary = append(summary, style.KV{Key: "Limit price", Value: "$" + price(req.Price)})
			} else {
				summary = append(summary, style.KV{Key: "Slippage", Value: fmt.Sprintf("%g%%", slippagePct)})
			}
			if req.TakeProfitPrice != nil {
				summary = append(summary, style.KV{Key: "Take profit", Value: "$" + price(*req.TakeProfitPrice)})
			}
			if req.StopLossPrice != nil {
				summary = append(summary, style.KV{Key: "Stop loss", Value: "$" + price(*req.StopLossPrice)})
			}

			tx, err := builder.OpenPosition(ctx, req)
			if err != nil {
				return err
			}
			return a.submit(ctx, "openPosition", tx, summary...)
		}),
	}
	m.register(cmd, false)
	cmd.Flags().StringVar(&size, "size", "", "position size in instrument units")
	cmd.Flags().StringVar(&collateral, "collateral-amount", "", "collateral amount in collateral token units")
	cmd.Flags().StringVar(&limit, "price", "", "limit entry price in USD (quoted with slippage when empty)")
	cmd.Flags().StringVar(&takeProfit, "take-profit", "", "take profit price in USD")
	cmd.Flags().StringVar(&stopLoss, "stop-loss", "", "stop loss price in USD")
	cmd.Flags().Float64Var(&slippagePct, "slippage", 1, "max slippage in percent for the quoted limit price")
	return cmd
}

func newClosePositionCommand(a *app) *cobra.Command {
	var (
		m           marketFlags
		limit       string
		slippagePct float64
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a position",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position close", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Close position", m.fields()...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			p, err := optionalPrice(limit)
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			collateralDecimals, err := a.decimals(ctx, ref.CollateralMint)
			if err != nil {
				return err
			}
			exit, err := a.quotes.ExitPriceAndFee(ctx, ref)
			if err != nil {
				return err
			}
			pnl, err := a.quotes.Pnl(ctx, ref)
			if err != nil {
				return err
			}

			req := perpetuals.ClosePositionRequest{Ref: ref, Slippage: slippage(slippagePct)}
			summary := []style.KV{
				{Key: "Pool", Value: m.pool},
				{Key: "Market", Value: fmt.Sprintf("%s %s", ref.Side, m.token)},
				{Key: "Exit price", Value: "$" + price(exit.Price)},
				{Key: "Fee", Value: fromNative(exit.Fee, collateralDecimals) + " " + m.collateral},
				{Key: "PnL", Value: formatPnl(pnl)},
			}
			if p != nil {
				req.Price = *p
				summary = append(summary, style.KV{Key: "Limit price", Value: "$" + price(*p)})
			}
			tx, err := builder.ClosePosition(ctx, req)
			if err != nil {
				return err
			}
			return a.submit(ctx, "closePosition", tx, summary...)
		}),
	}
	m.register(cmd, false)
	cmd.Flags().StringVar(&limit, "price", "", "limit exit price in USD (quoted with slippage when empty)")
	cmd.Flags().Float64Var(&slippagePct, "slippage", 1, "max slippage in percent for the quoted limit price")
	return cmd
}

func newAddCollateralCommand(a *app) *cobra.Command {
	var m marketFlags
	var amount string
	cmd := &cobra.Command{
		Use:   "add-collateral",
		Short: "Deposit more collateral into a position",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position add-collateral", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Add collateral", append(m.fields(), amountField("amount", "Collateral amount", &amount))...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			decimals, err := a.decimals(ctx, ref.CollateralMint)
			if err != nil {
				return err
			}
			native, err := toNative(amount, decimals)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			liq, err := a.quotes.LiquidationPrice(ctx, ref, native, 0)
			if err != nil {
				return err
			}
			tx, err := builder.AddCollateral(ctx, ref, native)
			if err != nil {
				return err
			}
			return a.submit(ctx, "addCollateral", tx,
				style.KV{Key: "Position", Value: fmt.Sprintf("%s %s in %s", ref.Side, m.token, m.pool)},
				style.KV{Key: "Deposit", Value: amount + " " + m.collateral},
				style.KV{Key: "New liquidation price", Value: "$" + price(liq)},
			)
		}),
	}
	m.register(cmd, false)
	cmd.Flags().StringVar(&amount, "amount", "", "collateral amount in token units")
	return cmd
}

func newRemoveCollateralCommand(a *app) *cobra.Command {
	var m marketFlags
	var amount string
	cmd := &cobra.Command{
		Use:   "remove-collateral",
		Short: "Withdraw collateral from a position (amount in USD)",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position remove-collateral", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Remove collateral", append(m.fields(), amountField("usd", "Amount (USD)", &amount))...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			native, err := toNative(amount, perpetuals.PriceDecimals)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			liq, err := a.quotes.LiquidationPrice(ctx, ref, 0, native)
			if err != nil {
				return err
			}
			tx, err := builder.RemoveCollateral(ctx, ref, native)
			if err != nil {
				return err
			}
			return a.submit(ctx, "removeCollateral", tx,
				style.KV{Key: "Position", Value: fmt.Sprintf("%s %s in %s", ref.Side, m.token, m.pool)},
				style.KV{Key: "Withdraw", Value: usd(native)},
				style.KV{Key: "New liquidation price", Value: "$" + price(liq)},
			)
		}),
	}
	m.register(cmd, false)
	cmd.Flags().StringVar(&amount, "usd", "", "collateral value to withdraw in USD")
	return cmd
}

func newShowPositionCommand(a *app) *cobra.Command {
	var m marketFlags
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"pnl", "liquidation"},
		Short:   "Show a position with its PnL, exit quote and liquidation state",
		Args:    cobra.NoArgs,
		RunE:    a.tracked("position show", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Position", m.fields()...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			reader, err := a.connect()
			if err != nil {
				return err
			}
			pos, err := reader.GetPosition(ctx, ref.Owner, ref.PoolName, ref.Mint, ref.Side)
			if err != nil {
				return err
			}
			resolver := reader.Resolver()
			pool, err := resolver.Pool(ref.PoolName)
			if err != nil {
				return err
			}
			address, err := resolver.Position(ref.Owner, pool, resolver.Custody(pool, ref.Mint), ref.Side)
			if err != nil {
				return err
			}
			quotes, err := a.quoteClient()
			if err != nil {
				return err
			}
			collateralDecimals, err := a.decimals(ctx, ref.CollateralMint)
			if err != nil {
				return err
			}
			pnl, err := quotes.Pnl(ctx, ref)
			if err != nil {
				return err
			}
			exit, err := quotes.ExitPriceAndFee(ctx, ref)
			if err != nil {
				return err
			}
			liq, err := quotes.LiquidationPrice(ctx, ref, 0, 0)
			if err != nil {
				return err
			}
			state, err := quotes.LiquidationState(ctx, ref)
			if err != nil {
				return err
			}

			status := style.Success("healthy")
			if state != 0 {
				status = style.Error("liquidatable")
			}
			fields := []style.KV{
				{Key: "Address", Value: address.String()},
				{Key: "Owner", Value: pos.Owner.String()},
				{Key: "Side", Value: pos.Side.String()},
				{Key: "Entry price", Value: "$" + price(pos.Price)},
				{Key: "Size", Value: usd(pos.SizeUsd)},
				{Key: "Collateral", Value: fmt.Sprintf("%s (%s %s)",
					usd(pos.CollateralUsd), fromNative(pos.CollateralAmount, collateralDecimals), m.collateral)},
				{Key: "Leverage", Value: positionLeverage(pos)},
				{Key: "Opened", Value: unixTime(pos.OpenTime)},
				{Key: "Exit price", Value: "$" + price(exit.Price)},
				{Key: "Exit fee", Value: fromNative(exit.Fee, collateralDecimals) + " " + m.collateral},
				{Key: "PnL", Value: formatPnl(pnl)},
				{Key: "Liquidation price", Value: "$" + price(liq)},
				{Key: "Status", Value: status},
			}
			if pos.TakeProfitPrice != nil {
				fields = append(fields, style.KV{Key: "Take profit", Value: "$" + price(*pos.TakeProfitPrice)})
			}
			if pos.StopLossPrice != nil {
				fields = append(fields, style.KV{Key: "Stop loss", Value: "$" + price(*pos.StopLossPrice)})
			}
			fmt.Fprintln(a.out, style.Title("Position"))
			fmt.Fprint(a.out, style.Fields(fields...))
			return nil
		}),
	}
	m.register(cmd, true)
	return cmd
}

func newListPositionsCommand(a *app) *cobra.Command {
	var owner, poolName, token, exportFormat, outputDir, sideFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List positions of an owner, or all positions of a market with --pool and --token",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position list", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if (poolName == "") != (token == "") {
				return errors.New("--pool and --token must be set together")
			}
			var format export.Format
			if exportFormat != "" {
				f, err := export.ParseFormat(exportFormat)
				if err != nil {
					return err
				}
				format = f
			}
			reader, err := a.connect()
			if err != nil {
				return err
			}
			var entries []perpetuals.PositionEntry
			if poolName != "" {
				mint, err := a.mint(token)
				if err != nil {
					return err
				}
				if entries, err = reader.GetPoolTokenPositions(ctx, poolName, mint); err != nil {
					return err
				}
			} else {
				key, err := a.owner(owner)
				if err != nil {
					return err
				}
				if entries, err = reader.GetUserPositions(ctx, key); err != nil {
					return err
				}
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, style.Warning("No positions"))
				return nil
			}
			if format != "" {
				path, err := export.NewExporter(a.logger()).Export(exportRows(entries), export.Options{
					Format:    format,
					Side:      sideFilter,
					OutputDir: outputDir,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, style.Success("Positions exported to " + path))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				p := e.Position
				rows = append(rows, []string{
					e.Address.String(),
					p.Owner.String(),
					p.Side.String(),
					"$" + price(p.Price),
					usd(p.SizeUsd),
					usd(p.CollateralUsd),
					positionLeverage(p),
					unixTime(p.OpenTime),
				})
			}
			fmt.Fprintln(a.out, style.Table(
				[]string{"Address", "Owner", "Side", "Entry", "Size", "Collateral", "Leverage", "Opened"}, rows))
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner", "", "position owner (defaults to the wallet)")
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&token, "token", "t", "", "instrument symbol or mint")
	cmd.Flags().StringVar(&exportFormat, "export", "", "write positions to a csv or json file instead of printing")
	cmd.Flags().StringVar(&outputDir, "output", ".", "directory for --export files")
	cmd.Flags().StringVar(&sideFilter, "side", "", "only export long or short positions")
	return cmd
}

// exportRows переводит позиции в строки выгрузки.
func exportRows(entries []perpetuals.PositionEntry) []export.Row {
	rows := make([]export.Row, 0, len(entries))
	for _, e := range entries {
		p := e.Position
		rows = append(rows, export.Row{
			Address:       e.Address.String(),
			Owner:         p.Owner.String(),
			Pool:          p.Pool.String(),
			Side:          p.Side.String(),
			EntryPrice:    usdDecimal(p.Price),
			SizeUsd:       usdDecimal(p.SizeUsd),
			CollateralUsd: usdDecimal(p.CollateralUsd),
			OpenTime:      time.Unix(p.OpenTime, 0).UTC(),
		})
	}
	return rows
}

func newLiquidateCommand(a *app) *cobra.Command {
	var m marketFlags
	cmd := &cobra.Command{
		Use:   "liquidate",
		Short: "Liquidate another owner's position that is below maintenance margin",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position liquidate", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			fields := append(m.fields(), textField("owner", "Position owner", &m.owner))
			if err := a.fill("Liquidate", fields...); err != nil {
				return err
			}
			ref, err := a.positionRef(&m)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			state, err := a.quotes.LiquidationState(ctx, ref)
			if err != nil {
				return err
			}
			if state == 0 {
				return fmt.Errorf("position of %s is not liquidatable", ref.Owner)
			}
			tx, err := builder.Liquidate(ctx, a.wallet.PublicKey, ref)
			if err != nil {
				return err
			}
			return a.submit(ctx, "liquidate", tx,
				style.KV{Key: "Owner", Value: ref.Owner.String()},
				style.KV{Key: "Position", Value: fmt.Sprintf("%s %s in %s", ref.Side, m.token, m.pool)},
			)
		}),
	}
	m.register(cmd, true)
	return cmd
}

func newSizeCommand(a *app) *cobra.Command {
	var (
		m                         marketFlags
		collateral, collPrice     string
		minLev, maxLev, tolerance string
	)
	defaults := sizing.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Find the largest size whose effective leverage stays within a band",
		Args:  cobra.NoArgs,
		RunE: a.tracked("position size", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Position sizing", append(m.fields(),
				amountField("collateral-amount", "Collateral amount", &collateral))...); err != nil {
				return err
			}
			cfg := sizing.DefaultConfig()
			var err error
			if cfg.Low, err = decimal.NewFromString(minLev); err != nil {
				return fmt.Errorf("--min-leverage: %w", err)
			}
			if cfg.High, err = decimal.NewFromString(maxLev); err != nil {
				return fmt.Errorf("--max-leverage: %w", err)
			}
			if cfg.Tolerance, err = decimal.NewFromString(tolerance); err != nil {
				return fmt.Errorf("--tolerance: %w", err)
			}
			solver, err := sizing.NewSolver(cfg, a.logger())
			if err != nil {
				return err
			}

			side, err := tradeSide(m.side)
			if err != nil {
				return err
			}
			mint, err := a.mint(m.token)
			if err != nil {
				return err
			}
			collateralMint, err := a.mint(m.collateral)
			if err != nil {
				return err
			}
			sizeDecimals, err := a.decimals(ctx, mint)
			if err != nil {
				return err
			}
			collateralDecimals, err := a.decimals(ctx, collateralMint)
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(strings.TrimSpace(collateral))
			if err != nil {
				return fmt.Errorf("invalid collateral amount %q: %w", collateral, err)
			}
			native, err := toNative(collateral, collateralDecimals)
			if err != nil {
				return err
			}
			unitPrice, err := a.collateralPrice(ctx, m.collateral, collPrice)
			if err != nil {
				return err
			}

			quotes, err := a.quoteClient()
			if err != nil {
				return err
			}
			quoter, err := quotes.EntryQuoter(ctx, m.pool, mint, collateralMint)
			if err != nil {
				return err
			}
			quote := sizing.FromEntryQuoter(quoter, sizing.Market{
				Template: perpetuals.EntryQuoteRequest{
					PoolName:       m.pool,
					Mint:           mint,
					CollateralMint: collateralMint,
					Collateral:     native,
					Side:           side,
				},
				SizeDecimals:       int32(sizeDecimals),
				CollateralDecimals: int32(collateralDecimals),
				CollateralPrice:    unitPrice,
			})

			res, err := solver.Solve(ctx, sizing.Request{Collateral: amount, CollateralUsd: amount.Mul(unitPrice)}, quote)
			if errors.Is(err, sizing.ErrNoQualifyingSize) {
				fmt.Fprintln(a.out, style.Warning(fmt.Sprintf("No size keeps leverage within [%s, %s]", cfg.Low, cfg.High)))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, style.Title("Position size"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Market", Value: fmt.Sprintf("%s %s in %s", side, m.token, m.pool)},
				style.KV{Key: "Collateral", Value: fmt.Sprintf("%s %s ($%s)", amount, m.collateral, amount.Mul(unitPrice).StringFixed(2))},
				style.KV{Key: "Size", Value: res.Size.Truncate(int32(sizeDecimals)).String() + " " + m.token},
				style.KV{Key: "Entry price", Value: "$" + res.EntryPrice.String()},
				style.KV{Key: "Fee", Value: "$" + res.FeeUsd.StringFixed(2)},
				style.KV{Key: "Leverage", Value: res.Leverage.StringFixed(4) + "x"},
				style.KV{Key: "Quotes", Value: fmt.Sprint(res.Quotes)},
			))
			return nil
		}),
	}
	m.register(cmd, false)
	cmd.Flags().StringVar(&collateral, "collateral-amount", "", "collateral amount in token units")
	cmd.Flags().StringVar(&collPrice, "collateral-price", "", "collateral USD price (fetched from Hermes when empty)")
	cmd.Flags().StringVar(&minLev, "min-leverage", defaults.Low.String(), "lower bound of the effective leverage band")
	cmd.Flags().StringVar(&maxLev, "max-leverage", defaults.High.String(), "upper bound of the effective leverage band")
	cmd.Flags().StringVar(&tolerance, "tolerance", defaults.Tolerance.String(), "size precision in instrument units")
	return cmd
}

// collateralPrice - явная цена или последняя цена Hermes по feed id из каталога.
func (a *app) collateralPrice(ctx context.Context, token, explicit string) (decimal.Decimal, error) {
	if strings.TrimSpace(explicit) != "" {
		p, err := decimal.NewFromString(strings.TrimSpace(explicit))
		if err != nil {
			return decimal.Zero, fmt.Errorf("--collateral-price: %w", err)
		}
		return p, nil
	}
	asset, err := a.catalog.Resolve(token)
	if err != nil {
		var nf *assets.NotFoundError
		if errors.As(err, &nf) {
			return decimal.Zero, fmt.Errorf("%s is not in the catalog: pass --collateral-price", token)
		}
		return decimal.Zero, err
	}
	update, err := a.hermes.LatestPriceUpdate(ctx, asset.FeedID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(update.Quotes) == 0 {
		return decimal.Zero, fmt.Errorf("no price for %s", asset.Symbol)
	}
	return update.Quotes[0].Price, nil
}

func formatPnl(p *perpetuals.ProfitAndLoss) string {
	switch {
	case p.Profit > 0:
		return style.Success("+" + usd(p.Profit))
	case p.Loss > 0:
		return style.Error("-" + usd(p.Loss))
	}
	return usd(0)
}

// positionLeverage - SizeUsd / CollateralUsd.
func positionLeverage(p *perpetuals.PositionAccount) string {
	if p.CollateralUsd == 0 {
		return "-"
	}
	return usdDecimal(p.SizeUsd).Div(usdDecimal(p.CollateralUsd)).StringFixed(2) + "x"
}
