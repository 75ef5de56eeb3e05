// internal/cli/root.go
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rovshanmuradov/perps-client/internal/ui/component"
)

// Options - ввод-вывод команды; нулевые значения означают терминал.
type Options struct {
	Out      io.Writer
	Prompter component.Prompter
}

// NewRootCommand собирает дерево команд perps.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Prompter == nil {
		opts.Prompter = component.TerminalPrompter{In: os.Stdin, Out: os.Stderr}
	}
	a := newApp(opts.Out, opts.Prompter)

	root := &cobra.Command{
		Use:           "perps",
		Short:         "Client for the perpetuals protocol",
		Long:          "Query and trade on the perpetuals program: pools, custodies, liquidity, positions and swaps.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown()
		},
	}
	root.SetOut(opts.Out)

	a.flags.register(root.PersistentFlags())

	root.AddCommand(
		newConfigCommand(a),
		newInfoCommand(a),
		newPoolCommand(a),
		newAdminCommand(a),
		newLiquidityCommand(a),
		newPositionCommand(a),
		newSwapCommand(a),
		newFaucetCommand(a),
	)
	return root
}

// Execute запускает команду с контекстом, отменяемым по сигналу.
func Execute(ctx context.Context, args []string, opts Options) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	root := NewRootCommand(opts)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// tracked оборачивает RunE: логирует длительность и дает команде контекст.
func (a *app) tracked(name string, run func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.log.TrackPerformance(name)()
		return run(cmd.Context(), cmd, args)
	}
}

func (g *globalFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&g.environment, "environment", "e", "", "cluster: mainnet, devnet or testnet (default from config)")
	flags.StringVarP(&g.keypair, "keypair", "k", "", "path to the signer keypair (default from config)")
	flags.StringVar(&g.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/perps/config.yaml)")
	flags.BoolVarP(&g.yes, "yes", "y", false, "do not prompt: fail on missing values and skip confirmation")
	flags.StringVar(&g.priority, "priority", "", "priority fee profile: low, medium, high or extreme")
	flags.StringVar(&g.metricsFile, "metrics-file", "", "write RPC and transaction metrics to this file on exit")
}
