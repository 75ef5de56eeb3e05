// internal/cli/liquidity_cmd.go
package cli

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

// liquidityFlags - общие флаги add/remove/quote.
type liquidityFlags struct {
	pool     string
	token    string
	amount   string
	slippage float64
}

func (f *liquidityFlags) register(cmd *cobra.Command, amountUsage string) {
	cmd.Flags().StringVarP(&f.pool, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "custody token symbol or mint")
	cmd.Flags().StringVar(&f.amount, "amount", "", amountUsage)
	cmd.Flags().Float64Var(&f.slippage, "slippage", 1, "max slippage in percent (0 disables the bound)")
}

func newLiquidityCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Provide or withdraw pool liquidity",
	}

	var add liquidityFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Deposit custody tokens and receive LP tokens",
		Args:  cobra.NoArgs,
		RunE: a.tracked("liquidity add", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			mint, amount, err := a.liquidityInput(ctx, "Add liquidity", &add, false)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.AddLiquidity(ctx, perpetuals.LiquidityRequest{
				Owner:    a.wallet.PublicKey,
				PoolName: add.pool,
				Mint:     mint,
				Amount:   amount,
				Slippage: slippage(add.slippage),
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "addLiquidity", tx,
				style.KV{Key: "Pool", Value: add.pool},
				style.KV{Key: "Deposit", Value: add.amount + " " + add.token},
				style.KV{Key: "Slippage", Value: fmt.Sprintf("%g%%", add.slippage)},
			)
		}),
	}
	add.register(addCmd, "amount of custody tokens to deposit")

	var remove liquidityFlags
	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Burn LP tokens and withdraw a custody token",
		Args:  cobra.NoArgs,
		RunE: a.tracked("liquidity remove", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			mint, amount, err := a.liquidityInput(ctx, "Remove liquidity", &remove, true)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.RemoveLiquidity(ctx, perpetuals.LiquidityRequest{
				Owner:    a.wallet.PublicKey,
				PoolName: remove.pool,
				Mint:     mint,
				Amount:   amount,
				Slippage: slippage(remove.slippage),
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "removeLiquidity", tx,
				style.KV{Key: "Pool", Value: remove.pool},
				style.KV{Key: "Burn", Value: remove.amount + " LP"},
				style.KV{Key: "Receive", Value: remove.token},
				style.KV{Key: "Slippage", Value: fmt.Sprintf("%g%%", remove.slippage)},
			)
		}),
	}
	remove.register(removeCmd, "amount of LP tokens to burn")

	var quote liquidityFlags
	var withdraw bool
	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a deposit (or a withdrawal with --remove) and show the LP price",
		Args:  cobra.NoArgs,
		RunE: a.tracked("liquidity quote", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			mint, amount, err := a.liquidityInput(ctx, "Liquidity quote", &quote, withdraw)
			if err != nil {
				return err
			}
			quotes, err := a.quoteClient()
			if err != nil {
				return err
			}
			tokenDecimals, err := a.decimals(ctx, mint)
			if err != nil {
				return err
			}
			lpDecimals, err := a.lpDecimals(ctx, quote.pool)
			if err != nil {
				return err
			}

			var out *perpetuals.AmountAndFee
			var received, fee string
			if withdraw {
				if out, err = quotes.RemoveLiquidityAmountAndFee(ctx, quote.pool, mint, amount); err != nil {
					return err
				}
				received = fromNative(out.Amount, tokenDecimals) + " " + quote.token
				fee = fromNative(out.Fee, tokenDecimals) + " " + quote.token
			} else {
				if out, err = quotes.AddLiquidityAmountAndFee(ctx, quote.pool, mint, amount); err != nil {
					return err
				}
				received = fromNative(out.Amount, lpDecimals) + " LP"
				fee = fromNative(out.Fee, tokenDecimals) + " " + quote.token
			}
			lpPrice, err := quotes.LpTokenPrice(ctx, quote.pool)
			if err != nil {
				return err
			}
			aum, err := quotes.AssetsUnderManagement(ctx, quote.pool)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, style.Title("Liquidity quote"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Pool", Value: quote.pool},
				style.KV{Key: "Receive", Value: received},
				style.KV{Key: "Fee", Value: fee},
				style.KV{Key: "LP price", Value: "$" + price(lpPrice)},
				style.KV{Key: "AUM", Value: usd128(aum)},
			))
			return nil
		}),
	}
	quote.register(quoteCmd, "deposit amount in tokens (LP tokens with --remove)")
	quoteCmd.Flags().BoolVar(&withdraw, "remove", false, "quote a withdrawal instead of a deposit")

	cmd.AddCommand(addCmd, removeCmd, quoteCmd)
	return cmd
}

// liquidityInput запрашивает недостающие значения и переводит amount в
// native-единицы: токены кастоди или LP-токены для вывода.
func (a *app) liquidityInput(ctx context.Context, title string, f *liquidityFlags, lp bool) (solana.PublicKey, uint64, error) {
	if err := a.fill(title,
		textField("pool", "Pool name", &f.pool),
		textField("token", "Token (symbol or mint)", &f.token),
		amountField("amount", "Amount", &f.amount),
	); err != nil {
		return solana.PublicKey{}, 0, err
	}
	mint, err := a.mint(f.token)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	var decimals uint8
	if lp {
		decimals, err = a.lpDecimals(ctx, f.pool)
	} else {
		decimals, err = a.decimals(ctx, mint)
	}
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	amount, err := toNative(f.amount, decimals)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return mint, amount, nil
}

func (a *app) lpDecimals(ctx context.Context, poolName string) (uint8, error) {
	reader, err := a.connect()
	if err != nil {
		return 0, err
	}
	pool, err := reader.Resolver().Pool(poolName)
	if err != nil {
		return 0, err
	}
	return a.decimals(ctx, reader.Resolver().LPTokenMint(pool))
}
