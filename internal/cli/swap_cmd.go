// internal/cli/swap_cmd.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/types"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func newSwapCommand(a *app) *cobra.Command {
	var (
		poolName, from, to, amount string
		slippagePct                float64
		quoteOnly                  bool
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one custody token for another through the pool",
		Args:  cobra.NoArgs,
		RunE: a.tracked("swap", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Swap",
				textField("pool", "Pool name", &poolName),
				textField("from", "Sell token (symbol or mint)", &from),
				textField("to", "Buy token (symbol or mint)", &to),
				amountField("amount", "Amount to sell", &amount),
			); err != nil {
				return err
			}
			mintIn, err := a.mint(from)
			if err != nil {
				return err
			}
			mintOut, err := a.mint(to)
			if err != nil {
				return err
			}
			inDecimals, err := a.decimals(ctx, mintIn)
			if err != nil {
				return err
			}
			outDecimals, err := a.decimals(ctx, mintOut)
			if err != nil {
				return err
			}
			amountIn, err := toNative(amount, inDecimals)
			if err != nil {
				return err
			}

			builder, err := a.trader()
			if err != nil {
				return err
			}
			quote, err := a.quotes.SwapAmountAndFees(ctx, poolName, mintIn, mintOut, amountIn)
			if err != nil {
				return err
			}
			cfg := slippage(slippagePct)
			minOut := types.CalculateMinAmountOut(quote.AmountOut, cfg)
			summary := []style.KV{
				{Key: "Pool", Value: poolName},
				{Key: "Sell", Value: amount + " " + from},
				{Key: "Receive", Value: fromNative(quote.AmountOut, outDecimals) + " " + to},
				{Key: "Minimum received", Value: fromNative(minOut, outDecimals) + " " + to},
				{Key: "Fees", Value: fmt.Sprintf("%s %s in, %s %s out",
					fromNative(quote.FeeIn, inDecimals), from, fromNative(quote.FeeOut, outDecimals), to)},
			}
			if quoteOnly {
				fmt.Fprintln(a.out, style.Title("Swap quote"))
				fmt.Fprint(a.out, style.Fields(summary...))
				return nil
			}

			tx, err := builder.Swap(ctx, perpetuals.SwapRequest{
				Owner:    a.wallet.PublicKey,
				PoolName: poolName,
				MintIn:   mintIn,
				MintOut:  mintOut,
				AmountIn: amountIn,
				Slippage: cfg,
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "swap", tx, summary...)
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVar(&from, "from", "", "token to sell (symbol or mint)")
	cmd.Flags().StringVar(&to, "to", "", "token to buy (symbol or mint)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to sell in token units")
	cmd.Flags().Float64Var(&slippagePct, "slippage", 1, "max slippage in percent (0 disables the bound)")
	cmd.Flags().BoolVar(&quoteOnly, "quote", false, "only print the quote")
	return cmd
}
