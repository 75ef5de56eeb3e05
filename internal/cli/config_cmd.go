// internal/cli/config_cmd.go
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/config"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
	"github.com/rovshanmuradov/perps-client/internal/wallet"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the persisted configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: a.tracked("config show", func(_ context.Context, _ *cobra.Command, _ []string) error {
			keypair := a.cfg.KeypairPath
			if keypair == "" {
				keypair = "(not set)"
			}
			faucetMint := a.cfg.Faucet.Mint
			if faucetMint == "" {
				faucetMint = "(not set)"
			}
			fmt.Fprintln(a.out, style.Title("Configuration"))
			fmt.Fprint(a.out, style.Fields(
				style.KV{Key: "File", Value: a.manager.Path()},
				style.KV{Key: "Environment", Value: string(a.env)},
				style.KV{Key: "Keypair", Value: keypair},
				style.KV{Key: "Program", Value: a.cfg.ProgramID},
				style.KV{Key: "RPC", Value: strings.Join(a.cfg.Endpoints(a.env), ", ")},
				style.KV{Key: "Compute units", Value: fmt.Sprint(a.cfg.ComputeUnitLimit)},
				style.KV{Key: "Unit price", Value: fmt.Sprintf("%d micro-lamports", a.cfg.ComputeUnitPrice)},
				style.KV{Key: "Rate limit", Value: rateLimit(a.cfg.RPCRateLimit)},
				style.KV{Key: "Confirm timeout", Value: a.cfg.ConfirmTimeout.String()},
				style.KV{Key: "Hermes", Value: a.cfg.HermesURL},
				style.KV{Key: "Faucet mint", Value: faucetMint},
			))
			return nil
		}),
	}

	setEnv := &cobra.Command{
		Use:       "set-env <mainnet|devnet|testnet>",
		Short:     "Set the default environment",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(config.Mainnet), string(config.Devnet), string(config.Testnet)},
		RunE: a.tracked("config set-env", func(_ context.Context, _ *cobra.Command, args []string) error {
			env, err := config.ParseEnvironment(args[0])
			if err != nil {
				return err
			}
			return a.persist("environment", string(env))
		}),
	}

	setKeypair := &cobra.Command{
		Use:   "set-keypair <path>",
		Short: "Set the default signer keypair file",
		Args:  cobra.ExactArgs(1),
		RunE: a.tracked("config set-keypair", func(_ context.Context, _ *cobra.Command, args []string) error {
			w, err := wallet.Load(args[0])
			if err != nil {
				return err
			}
			if err := a.persist("keypair_path", args[0]); err != nil {
				return err
			}
			fmt.Fprint(a.out, style.Fields(style.KV{Key: "Public key", Value: w.String()}))
			return nil
		}),
	}

	var rpcEnv string
	setRPC := &cobra.Command{
		Use:   "set-rpc <url> [url...]",
		Short: "Set the ordered RPC endpoint list for an environment",
		Long:  "Set the ordered RPC endpoint list. The first URL is the primary: transactions are sent only there, reads fail over in order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.tracked("config set-rpc", func(_ context.Context, _ *cobra.Command, args []string) error {
			env := a.env
			if rpcEnv != "" {
				var err error
				if env, err = config.ParseEnvironment(rpcEnv); err != nil {
					return err
				}
			}
			return a.persist("rpc_urls."+string(env), args)
		}),
	}
	setRPC.Flags().StringVar(&rpcEnv, "env", "", "environment to update (default: current)")

	cmd.AddCommand(show, setEnv, setKeypair, setRPC)
	return cmd
}

// persist меняет ключ, проверяет итоговую конфигурацию и записывает файл.
func (a *app) persist(key string, value interface{}) error {
	a.manager.Set(key, value)
	if _, err := a.manager.Config(); err != nil {
		return err
	}
	if err := a.manager.Save(); err != nil {
		return err
	}
	a.logger().Info("Configuration updated")
	fmt.Fprintln(a.out, style.Success(fmt.Sprintf("%s saved to %s", key, a.manager.Path())))
	return nil
}

func rateLimit(perSecond float64) string {
	if perSecond <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%g req/s", perSecond)
}
