// internal/cli/faucet_cmd.go
package cli

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

// DefaultFaucetAmount - выпуск по умолчанию в минимальных единицах (1 AUSD при 6 знаках).
const DefaultFaucetAmount uint64 = 1_000_000

func newFaucetCommand(a *app) *cobra.Command {
	var mint string
	cmd := &cobra.Command{
		Use:   "faucet",
		Short: "AUSD test faucet",
	}
	cmd.PersistentFlags().StringVar(&mint, "mint", "", "faucet mint (default from faucet.mint)")

	initialize := &cobra.Command{
		Use:   "initialize",
		Short: "Hand the mint authority to the faucet program",
		Args:  cobra.NoArgs,
		RunE: a.tracked("faucet initialize", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			w, err := a.signer()
			if err != nil {
				return err
			}
			builder, err := a.faucetBuilder(mint)
			if err != nil {
				return err
			}
			tx, err := builder.Initialize(ctx, w.PublicKey)
			if err != nil {
				return err
			}
			addrs := builder.Addresses()
			return a.submit(ctx, "faucetInitialize", tx,
				style.KV{Key: "Mint", Value: addrs.Mint.String()},
				style.KV{Key: "Faucet config", Value: addrs.Config.Address.String()},
				style.KV{Key: "Mint authority", Value: addrs.MintAuthority.Address.String()},
			)
		}),
	}

	var user string
	var amount uint64
	mintTo := &cobra.Command{
		Use:   "mint",
		Short: "Mint AUSD to a wallet",
		Args:  cobra.NoArgs,
		RunE: a.tracked("faucet mint", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Faucet mint", textField("user", "User wallet address", &user)); err != nil {
				return err
			}
			receiver, err := solana.PublicKeyFromBase58(user)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", user, err)
			}
			w, err := a.signer()
			if err != nil {
				return err
			}
			builder, err := a.faucetBuilder(mint)
			if err != nil {
				return err
			}
			tx, err := builder.MintTo(ctx, w.PublicKey, receiver, amount)
			if err != nil {
				return err
			}
			return a.submit(ctx, "faucetMintToUser", tx,
				style.KV{Key: "User", Value: receiver.String()},
				style.KV{Key: "Amount", Value: fmt.Sprintf("%d (smallest units)", amount)},
				style.KV{Key: "Mint", Value: builder.Addresses().Mint.String()},
			)
		}),
	}
	mintTo.Flags().StringVarP(&user, "user", "u", "", "receiving wallet")
	mintTo.Flags().Uint64VarP(&amount, "amount", "a", DefaultFaucetAmount, "amount in the smallest units")

	transfer := &cobra.Command{
		Use:   "transfer-authority",
		Short: "Return the mint authority to the faucet admin",
		Args:  cobra.NoArgs,
		RunE: a.tracked("faucet transfer-authority", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			w, err := a.signer()
			if err != nil {
				return err
			}
			builder, err := a.faucetBuilder(mint)
			if err != nil {
				return err
			}
			tx, err := builder.TransferAuthority(ctx, w.PublicKey)
			if err != nil {
				return err
			}
			return a.submit(ctx, "faucetTransferMintAuthority", tx,
				style.KV{Key: "Mint", Value: builder.Addresses().Mint.String()},
				style.KV{Key: "New authority", Value: w.PublicKey.String()},
			)
		}),
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the faucet state",
		Args:  cobra.NoArgs,
		RunE: a.tracked("faucet show", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			builder, err := a.faucetBuilder(mint)
			if err != nil {
				return err
			}
			cfg, err := builder.GetConfig(ctx)
			if err != nil {
				return err
			}
			addrs := builder.Addresses()
			fmt.Fprintln(a.out, style.Title("AUSD faucet"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "Config", Value: addrs.Config.Address.String()},
				style.KV{Key: "Admin", Value: cfg.Admin.String()},
				style.KV{Key: "Mint", Value: cfg.Mint.String()},
				style.KV{Key: "Mint authority", Value: cfg.MintAuthority.String()},
			))
			return nil
		}),
	}

	cmd.AddCommand(initialize, mintTo, transfer, show)
	return cmd
}
