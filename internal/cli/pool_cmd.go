// internal/cli/pool_cmd.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func newPoolCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "List, add and remove pools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all pools",
		Args:  cobra.NoArgs,
		RunE: a.tracked("pool list", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			reader, err := a.connect()
			if err != nil {
				return err
			}
			pools, err := reader.GetPools(ctx)
			if err != nil {
				return err
			}
			if len(pools) == 0 {
				fmt.Fprintln(a.out, style.Warning("No pools"))
				return nil
			}
			rows := make([][]string, 0, len(pools))
			for _, p := range pools {
				rows = append(rows, []string{
					p.Name,
					poolAddress(reader.Resolver(), p.Name),
					fmt.Sprint(len(p.Custodies)),
					usd128(p.AumUsd),
				})
			}
			fmt.Fprintln(a.out, style.Table([]string{"Name", "Address", "Custodies", "AUM"}, rows))
			return nil
		}),
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a pool (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.tracked("pool add", func(ctx context.Context, _ *cobra.Command, args []string) error {
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.AddPool(ctx, a.wallet.PublicKey, args[0])
			if err != nil {
				return err
			}
			pool, err := builder.Resolver().Pool(args[0])
			if err != nil {
				return err
			}
			return a.submit(ctx, "addPool", tx,
				style.KV{Key: "Pool", Value: args[0]},
				style.KV{Key: "Address", Value: pool.String()},
				style.KV{Key: "LP mint", Value: builder.Resolver().LPTokenMint(pool).String()},
			)
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an empty pool (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.tracked("pool remove", func(ctx context.Context, _ *cobra.Command, args []string) error {
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.RemovePool(ctx, a.wallet.PublicKey, args[0])
			if err != nil {
				return err
			}
			return a.submit(ctx, "removePool", tx, style.KV{Key: "Pool", Value: args[0]})
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

// poolAddress - адрес пула для вывода; "-" для имени, из которого PDA не выводится.
func poolAddress(r *perpetuals.Resolver, name string) string {
	pool, err := r.Pool(name)
	if err != nil {
		return "-"
	}
	return pool.String()
}
