// internal/cli/info_cmd.go
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/assets"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func newInfoCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Read program accounts and the asset catalog",
	}

	perps := &cobra.Command{
		Use:   "perpetuals",
		Short: "Show the global program state",
		Args:  cobra.NoArgs,
		RunE: a.tracked("info perpetuals", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			reader, err := a.connect()
			if err != nil {
				return err
			}
			state, err := reader.GetPerpetuals(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, style.Title("Perpetuals"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Address", Value: reader.Resolver().Perpetuals().String()},
				style.KV{Key: "Pools", Value: fmt.Sprint(len(state.Pools))},
				style.KV{Key: "Permissions", Value: describePermissions(state.Permissions)},
				style.KV{Key: "Inception", Value: unixTime(state.InceptionTime)},
			))
			return nil
		}),
	}

	pool := &cobra.Command{
		Use:   "pool <name>",
		Short: "Show a pool and its custodies",
		Args:  cobra.ExactArgs(1),
		RunE: a.tracked("info pool", func(ctx context.Context, _ *cobra.Command, args []string) error {
			reader, err := a.connect()
			if err != nil {
				return err
			}
			p, err := reader.GetPool(ctx, args[0])
			if err != nil {
				return err
			}
			custodies, err := reader.GetCustodies(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, style.Title("Pool "+p.Name))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Address", Value: poolAddress(reader.Resolver(), p.Name)},
				style.KV{Key: "AUM", Value: usd128(p.AumUsd)},
				style.KV{Key: "Inception", Value: unixTime(p.InceptionTime)},
			))
			rows := make([][]string, 0, len(custodies))
			for i, c := range custodies {
				ratio := "-"
				if i < len(p.Ratios) {
					r := p.Ratios[i]
					ratio = fmt.Sprintf("%s (%s..%s)", bps(r.Target), bps(r.Min), bps(r.Max))
				}
				rows = append(rows, []string{a.symbol(c), c.Mint.String(), custodyKind(c), ratio, fromNative(c.Assets.Owned, c.Decimals)})
			}
			fmt.Fprintln(a.out, style.Table([]string{"Token", "Mint", "Kind", "Target ratio", "Owned"}, rows))
			return nil
		}),
	}

	var poolName, token string
	custody := &cobra.Command{
		Use:   "custody",
		Short: "Show a custody account",
		Args:  cobra.NoArgs,
		RunE: a.tracked("info custody", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Custody", textField("pool", "Pool name", &poolName), textField("token", "Token (symbol or mint)", &token)); err != nil {
				return err
			}
			mint, err := a.mint(token)
			if err != nil {
				return err
			}
			reader, err := a.connect()
			if err != nil {
				return err
			}
			c, err := reader.GetCustody(ctx, poolName, mint)
			if err != nil {
				return err
			}
			printCustody(a, c)
			return nil
		}),
	}
	custody.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	custody.Flags().StringVarP(&token, "token", "t", "", "token symbol or mint")

	multisig := &cobra.Command{
		Use:   "multisig",
		Short: "Show admin signers",
		Args:  cobra.NoArgs,
		RunE: a.tracked("info multisig", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			reader, err := a.connect()
			if err != nil {
				return err
			}
			m, err := reader.GetMultisig(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, style.Title("Multisig"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Address", Value: reader.Resolver().Multisig().String()},
				style.KV{Key: "Min signatures", Value: fmt.Sprintf("%d of %d", m.MinSignatures, m.NumSigners)},
				style.KV{Key: "Pending", Value: fmt.Sprintf("%d signed", m.NumSigned)},
			))
			rows := make([][]string, 0, m.NumSigners)
			for i, admin := range m.Admins() {
				rows = append(rows, []string{fmt.Sprint(i + 1), admin.String()})
			}
			fmt.Fprintln(a.out, style.Table([]string{"#", "Admin"}, rows))
			return nil
		}),
	}

	var assetType string
	var stableOnly bool
	catalog := &cobra.Command{
		Use:   "assets",
		Short: "List the supported instruments",
		Args:  cobra.NoArgs,
		RunE: a.tracked("info assets", func(_ context.Context, _ *cobra.Command, _ []string) error {
			list := a.catalog.All()
			switch {
			case stableOnly:
				list = a.catalog.ByStability(true)
			case assetType != "":
				list = a.catalog.ByType(assets.Type(assetType))
			}
			rows := make([][]string, 0, len(list))
			for _, asset := range list {
				mint := "virtual"
				if !asset.Virtual() {
					mint = asset.Mint.String()
				}
				rows = append(rows, []string{asset.Symbol, asset.Name, string(asset.Type), mint, fmt.Sprint(asset.Decimals)})
			}
			fmt.Fprintln(a.out, style.Table([]string{"Symbol", "Name", "Type", "Mint", "Decimals"}, rows))
			return nil
		}),
	}
	catalog.Flags().StringVar(&assetType, "type", "", "filter by type (Crypto, FX, Metal, ...)")
	catalog.Flags().BoolVar(&stableOnly, "stable", false, "only stable assets")

	cmd.AddCommand(perps, pool, custody, multisig, catalog)
	return cmd
}

func printCustody(a *app, c *perpetuals.CustodyAccount) {
	fmt.Fprintln(a.out, style.Title("Custody "+a.symbol(c)))
	fmt.Fprint(a.out, style.Fields(
		style.KV{Key: "Mint", Value: c.Mint.String()},
		style.KV{Key: "Pool", Value: c.Pool.String()},
		style.KV{Key: "Token account", Value: c.TokenAccount.String()},
		style.KV{Key: "Kind", Value: custodyKind(c)},
		style.KV{Key: "Decimals", Value: fmt.Sprint(c.Decimals)},
		style.KV{Key: "Oracle", Value: fmt.Sprintf("%s %s", c.Oracle.OracleType, c.Oracle.OracleAccount)},
		style.KV{Key: "Max price age", Value: (time.Duration(c.Oracle.MaxPriceAgeSec) * time.Second).String()},
		style.KV{Key: "Leverage", Value: fmt.Sprintf("%s..%s (max %s)",
			leverage(c.Pricing.MinInitialLeverage), leverage(c.Pricing.MaxInitialLeverage), leverage(c.Pricing.MaxLeverage))},
		style.KV{Key: "Spreads", Value: fmt.Sprintf("long %s, short %s, swap %s",
			bps(c.Pricing.TradeSpreadLong), bps(c.Pricing.TradeSpreadShort), bps(c.Pricing.SwapSpread))},
		style.KV{Key: "Fees", Value: fmt.Sprintf("%s: open %s, close %s, liquidation %s",
			c.Fees.Mode, bps(c.Fees.OpenPosition), bps(c.Fees.ClosePosition), bps(c.Fees.Liquidation))},
		style.KV{Key: "Permissions", Value: describePermissions(c.Permissions)},
		style.KV{Key: "Owned", Value: fromNative(c.Assets.Owned, c.Decimals)},
		style.KV{Key: "Locked", Value: fromNative(c.Assets.Locked, c.Decimals)},
		style.KV{Key: "Protocol fees", Value: fromNative(c.Assets.ProtocolFees, c.Decimals)},
		style.KV{Key: "Open interest", Value: fmt.Sprintf("long %s, short %s",
			usd(c.TradeStats.OiLongUsd), usd(c.TradeStats.OiShortUsd))},
	))
}

// symbol - символ из каталога или сокращенный mint.
func (a *app) symbol(c *perpetuals.CustodyAccount) string {
	if asset, err := a.catalog.ByMint(c.Mint); err == nil {
		return asset.Symbol
	}
	s := c.Mint.String()
	return s[:4] + ".." + s[len(s)-4:]
}

func custodyKind(c *perpetuals.CustodyAccount) string {
	var kind []string
	if c.IsStable {
		kind = append(kind, "stable")
	}
	if c.IsVirtual {
		kind = append(kind, "virtual")
	}
	if len(kind) == 0 {
		return "token"
	}
	return strings.Join(kind, ", ")
}

func unixTime(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
