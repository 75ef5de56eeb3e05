// internal/cli/admin_cmd.go
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/perps-client/internal/oracle"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

func newAdminCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative instructions (require admin or upgrade authority)",
	}
	cmd.AddCommand(
		newInitCommand(a),
		newSetAdminsCommand(a),
		newSetPermissionsCommand(a),
		newAddCustodyCommand(a),
		newRemoveCustodyCommand(a),
		newUpgradeCustodyCommand(a),
		newSetCustodyConfigCommand(a),
		newSetOraclePriceCommand(a),
		newWithdrawFeesCommand(a),
		newUpdateAumCommand(a),
		newSetTestTimeCommand(a),
		newCreateUSDCMintCommand(a),
	)
	return cmd
}

func newInitCommand(a *app) *cobra.Command {
	var admins []string
	var minSignatures uint8
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the program (upgrade authority)",
		Args:  cobra.NoArgs,
	}
	perms := addPermissionFlags(cmd)
	cmd.Flags().StringSliceVar(&admins, "admins", nil, "admin public keys (default: signer)")
	cmd.Flags().Uint8Var(&minSignatures, "min-signatures", 1, "signatures required for admin instructions")

	cmd.RunE = a.tracked("admin init", func(ctx context.Context, _ *cobra.Command, _ []string) error {
		builder, err := a.trader()
		if err != nil {
			return err
		}
		keys := []solana.PublicKey{a.wallet.PublicKey}
		if len(admins) > 0 {
			if keys, err = parseKeys(admins); err != nil {
				return err
			}
		}
		tx, err := builder.Init(ctx, perpetuals.InitRequest{
			UpgradeAuthority: a.wallet.PublicKey,
			Admins:           keys,
			MinSignatures:    minSignatures,
			Permissions:      perms.permissions(),
		})
		if err != nil {
			return err
		}
		return a.submit(ctx, "init", tx,
			style.KV{Key: "Admins", Value: joinKeys(keys)},
			style.KV{Key: "Min signatures", Value: fmt.Sprint(minSignatures)},
			style.KV{Key: "Permissions", Value: describePermissions(perms.permissions())},
		)
	})
	return cmd
}

func newSetAdminsCommand(a *app) *cobra.Command {
	var admins []string
	var minSignatures uint8
	cmd := &cobra.Command{
		Use:   "set-admins",
		Short: "Replace the admin signer set",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin set-admins", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			keys, err := parseKeys(admins)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.SetAdminSigners(ctx, a.wallet.PublicKey, keys, minSignatures)
			if err != nil {
				return err
			}
			return a.submit(ctx, "setAdminSigners", tx,
				style.KV{Key: "Admins", Value: joinKeys(keys)},
				style.KV{Key: "Min signatures", Value: fmt.Sprint(minSignatures)},
			)
		}),
	}
	cmd.Flags().StringSliceVar(&admins, "admins", nil, "admin public keys")
	cmd.Flags().Uint8Var(&minSignatures, "min-signatures", 1, "signatures required for admin instructions")
	_ = cmd.MarkFlagRequired("admins")
	return cmd
}

func newSetPermissionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-permissions",
		Short: "Set global permissions",
		Args:  cobra.NoArgs,
	}
	perms := addPermissionFlags(cmd)
	cmd.RunE = a.tracked("admin set-permissions", func(ctx context.Context, _ *cobra.Command, _ []string) error {
		builder, err := a.trader()
		if err != nil {
			return err
		}
		tx, err := builder.SetPermissions(ctx, a.wallet.PublicKey, perms.permissions())
		if err != nil {
			return err
		}
		return a.submit(ctx, "setPermissions", tx,
			style.KV{Key: "Permissions", Value: describePermissions(perms.permissions())})
	})
	return cmd
}

// custodyFlags - общие флаги add-custody и set-custody-config.
type custodyFlags struct {
	pool          string
	token         string
	configFile    string
	feedID        string
	oracleAccount string
	stable        bool
	ratios        string
}

func (f *custodyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.pool, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "token symbol, mint or feed id")
	cmd.Flags().StringVar(&f.configFile, "custody-config", "", "YAML file with oracle, pricing, fees and borrow rate parameters")
	cmd.Flags().StringVar(&f.feedID, "feed-id", "", "Pyth feed id (default from the asset catalog)")
	cmd.Flags().StringVar(&f.oracleAccount, "oracle-account", "", "oracle account (default derived from the feed id)")
	cmd.Flags().BoolVar(&f.stable, "stable", false, "stable token (default from the asset catalog)")
	cmd.Flags().StringVar(&f.ratios, "ratios", "", "pool ratios target,min,max|... in BPS, one per custody")
}

// custodyTarget - mint кастоди и все, что о нем знает каталог.
type custodyTarget struct {
	mint    solana.PublicKey
	virtual *perpetuals.VirtualMint
	feedID  *oracle.FeedID
	stable  bool
}

func (a *app) custodyTarget(token string) (custodyTarget, error) {
	if asset, err := a.catalog.Resolve(token); err == nil {
		t := custodyTarget{mint: asset.Mint, stable: asset.IsStable}
		feed := asset.FeedID
		t.feedID = &feed
		if asset.Virtual() {
			t.virtual = &perpetuals.VirtualMint{Decimals: asset.Decimals}
		}
		return t, nil
	}
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(token))
	if err != nil {
		return custodyTarget{}, fmt.Errorf("unknown token %q: not a catalog symbol or mint address", token)
	}
	return custodyTarget{mint: mint}, nil
}

// custodyConfig собирает параметры: файл, затем каталог, затем флаги.
func (a *app) custodyConfig(cmd *cobra.Command, f *custodyFlags, target custodyTarget) (perpetuals.CustodyConfig, error) {
	file, err := loadCustodyFile(f.configFile)
	if err != nil {
		return perpetuals.CustodyConfig{}, err
	}
	cfg, err := file.toConfig()
	if err != nil {
		return cfg, err
	}

	var zero [32]byte
	if cfg.Oracle.FeedID == zero && target.feedID != nil {
		cfg.Oracle.FeedID = *target.feedID
	}
	if !file.Stable {
		cfg.IsStable = target.stable
	}
	if cmd.Flags().Changed("stable") {
		cfg.IsStable = f.stable
	}
	if f.feedID != "" {
		id, err := oracle.ParseFeedID(f.feedID)
		if err != nil {
			return cfg, err
		}
		cfg.Oracle.FeedID = id
	}
	if f.oracleAccount != "" {
		if cfg.Oracle.OracleAccount, err = solana.PublicKeyFromBase58(f.oracleAccount); err != nil {
			return cfg, fmt.Errorf("invalid oracle account: %w", err)
		}
	}
	if f.ratios != "" {
		if cfg.Ratios, err = parseRatios(f.ratios); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newAddCustodyCommand(a *app) *cobra.Command {
	var f custodyFlags
	cmd := &cobra.Command{
		Use:   "add-custody",
		Short: "Add a token or virtual instrument to a pool",
		Long: "Add a custody to a pool. Catalog instruments without a mint are added as virtual " +
			"custodies: a new mint is created in the same transaction.",
		Args: cobra.NoArgs,
	}
	f.register(cmd)
	cmd.RunE = a.tracked("admin add-custody", func(ctx context.Context, cmd *cobra.Command, _ []string) error {
		if err := a.fill("Add custody", textField("pool", "Pool name", &f.pool), textField("token", "Token (symbol, mint or feed id)", &f.token)); err != nil {
			return err
		}
		target, err := a.custodyTarget(f.token)
		if err != nil {
			return err
		}
		cfg, err := a.custodyConfig(cmd, &f, target)
		if err != nil {
			return err
		}
		builder, err := a.trader()
		if err != nil {
			return err
		}
		if len(cfg.Ratios) == 0 {
			pool, err := a.reader.GetPool(ctx, f.pool)
			if err != nil {
				return err
			}
			cfg.Ratios = evenRatios(len(pool.Custodies) + 1)
		}

		tx, err := builder.AddCustody(ctx, perpetuals.AddCustodyRequest{
			Admin:    a.wallet.PublicKey,
			PoolName: f.pool,
			Mint:     target.mint,
			Virtual:  target.virtual,
			Config:   cfg,
		})
		if err != nil {
			return err
		}
		mint := target.mint.String()
		if target.virtual != nil {
			mint = fmt.Sprintf("new virtual mint (%d decimals)", target.virtual.Decimals)
		}
		return a.submit(ctx, "addCustody", tx,
			style.KV{Key: "Pool", Value: f.pool},
			style.KV{Key: "Mint", Value: mint},
			style.KV{Key: "Stable", Value: fmt.Sprint(cfg.IsStable)},
			style.KV{Key: "Oracle", Value: cfg.Oracle.OracleType.String()},
			style.KV{Key: "Ratios", Value: describeRatios(cfg.Ratios)},
		)
	})
	return cmd
}

func newSetCustodyConfigCommand(a *app) *cobra.Command {
	var f custodyFlags
	cmd := &cobra.Command{
		Use:   "set-custody-config",
		Short: "Replace the configuration of an existing custody",
		Args:  cobra.NoArgs,
	}
	f.register(cmd)
	cmd.RunE = a.tracked("admin set-custody-config", func(ctx context.Context, cmd *cobra.Command, _ []string) error {
		if err := a.fill("Custody config", textField("pool", "Pool name", &f.pool), textField("token", "Token (symbol or mint)", &f.token)); err != nil {
			return err
		}
		target, err := a.custodyTarget(f.token)
		if err != nil {
			return err
		}
		if target.mint.IsZero() {
			return fmt.Errorf("%s has no mint: pass the custody mint address", f.token)
		}
		cfg, err := a.custodyConfig(cmd, &f, target)
		if err != nil {
			return err
		}
		builder, err := a.trader()
		if err != nil {
			return err
		}
		existing, err := a.reader.GetCustody(ctx, f.pool, target.mint)
		if err != nil {
			return err
		}
		cfg.IsVirtual = existing.IsVirtual
		if len(cfg.Ratios) == 0 {
			pool, err := a.reader.GetPool(ctx, f.pool)
			if err != nil {
				return err
			}
			cfg.Ratios = pool.Ratios
		}

		tx, err := builder.SetCustodyConfig(ctx, perpetuals.SetCustodyConfigRequest{
			Admin:    a.wallet.PublicKey,
			PoolName: f.pool,
			Mint:     target.mint,
			Config:   cfg,
		})
		if err != nil {
			return err
		}
		return a.submit(ctx, "setCustodyConfig", tx,
			style.KV{Key: "Pool", Value: f.pool},
			style.KV{Key: "Mint", Value: target.mint.String()},
			style.KV{Key: "Ratios", Value: describeRatios(cfg.Ratios)},
		)
	})
	return cmd
}

func newRemoveCustodyCommand(a *app) *cobra.Command {
	var poolName, token, ratios string
	cmd := &cobra.Command{
		Use:   "remove-custody",
		Short: "Remove a custody from a pool",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin remove-custody", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Remove custody", textField("pool", "Pool name", &poolName), textField("token", "Token (symbol or mint)", &token)); err != nil {
				return err
			}
			mint, err := a.mint(token)
			if err != nil {
				return err
			}
			remaining, err := parseRatios(ratios)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				pool, err := a.reader.GetPool(ctx, poolName)
				if err != nil {
					return err
				}
				remaining = evenRatios(len(pool.Custodies) - 1)
			}
			tx, err := builder.RemoveCustody(ctx, perpetuals.RemoveCustodyRequest{
				Admin:    a.wallet.PublicKey,
				PoolName: poolName,
				Mint:     mint,
				Ratios:   remaining,
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "removeCustody", tx,
				style.KV{Key: "Pool", Value: poolName},
				style.KV{Key: "Mint", Value: mint.String()},
				style.KV{Key: "Ratios", Value: describeRatios(remaining)},
			)
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol or mint")
	cmd.Flags().StringVar(&ratios, "ratios", "", "ratios of the remaining custodies target,min,max|... (default: even split)")
	return cmd
}

func newUpgradeCustodyCommand(a *app) *cobra.Command {
	var poolName, token string
	cmd := &cobra.Command{
		Use:   "upgrade-custody",
		Short: "Migrate a custody account to the current layout",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin upgrade-custody", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Upgrade custody", textField("pool", "Pool name", &poolName), textField("token", "Token (symbol or mint)", &token)); err != nil {
				return err
			}
			mint, err := a.mint(token)
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.UpgradeCustody(ctx, a.wallet.PublicKey, poolName, mint)
			if err != nil {
				return err
			}
			return a.submit(ctx, "upgradeCustody", tx,
				style.KV{Key: "Pool", Value: poolName},
				style.KV{Key: "Mint", Value: mint.String()},
			)
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol or mint")
	return cmd
}

func newSetOraclePriceCommand(a *app) *cobra.Command {
	var poolName, token, priceValue, ema, conf string
	var expo int32
	cmd := &cobra.Command{
		Use:   "set-oracle-price",
		Short: "Publish a price to the custom oracle of a custody",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin set-oracle-price", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Custom oracle price",
				textField("pool", "Pool name", &poolName),
				textField("token", "Token (symbol or mint)", &token),
				amountField("price", "Price (USD)", &priceValue),
			); err != nil {
				return err
			}
			mint, err := a.mint(token)
			if err != nil {
				return err
			}
			params, err := oraclePrice(priceValue, ema, conf, expo, time.Now())
			if err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.SetCustomOraclePrice(ctx, perpetuals.SetCustomOraclePriceRequest{
				Admin:    a.wallet.PublicKey,
				PoolName: poolName,
				Mint:     mint,
				Price:    params,
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "setCustomOraclePrice", tx,
				style.KV{Key: "Pool", Value: poolName},
				style.KV{Key: "Mint", Value: mint.String()},
				style.KV{Key: "Price", Value: fmt.Sprintf("%d x 10^%d", params.Price, params.Expo)},
				style.KV{Key: "EMA", Value: fmt.Sprintf("%d x 10^%d", params.Ema, params.Expo)},
			)
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol or mint")
	cmd.Flags().StringVar(&priceValue, "price", "", "price in USD")
	cmd.Flags().StringVar(&ema, "ema", "", "EMA price in USD (default: price)")
	cmd.Flags().StringVar(&conf, "conf", "0", "confidence interval in USD")
	cmd.Flags().Int32Var(&expo, "expo", -perpetuals.PriceDecimals, "price exponent")
	return cmd
}

// oraclePrice переводит USD-значения в целые с экспонентой expo.
func oraclePrice(priceValue, ema, conf string, expo int32, now time.Time) (perpetuals.SetCustomOraclePriceParams, error) {
	if expo > 0 {
		return perpetuals.SetCustomOraclePriceParams{}, fmt.Errorf("expo must be <= 0, got %d", expo)
	}
	if ema == "" {
		ema = priceValue
	}
	decimals := uint8(-expo)
	p, err := toNative(priceValue, decimals)
	if err != nil {
		return perpetuals.SetCustomOraclePriceParams{}, err
	}
	e, err := toNative(ema, decimals)
	if err != nil {
		return perpetuals.SetCustomOraclePriceParams{}, err
	}
	c, err := toNative(conf, decimals)
	if err != nil {
		return perpetuals.SetCustomOraclePriceParams{}, err
	}
	return perpetuals.SetCustomOraclePriceParams{
		Price:       p,
		Expo:        expo,
		Conf:        c,
		Ema:         e,
		PublishTime: now.Unix(),
	}, nil
}

func newWithdrawFeesCommand(a *app) *cobra.Command {
	var poolName, token, amount, receiver string
	var sol bool
	cmd := &cobra.Command{
		Use:   "withdraw-fees",
		Short: "Withdraw protocol fees from a custody, or SOL fees with --sol",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin withdraw-fees", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			fields := []field{amountField("amount", "Amount", &amount)}
			if !sol {
				fields = append([]field{textField("pool", "Pool name", &poolName), textField("token", "Token (symbol or mint)", &token)}, fields...)
			}
			if err := a.fill("Withdraw fees", fields...); err != nil {
				return err
			}
			var to solana.PublicKey
			if receiver != "" {
				var err error
				if to, err = solana.PublicKeyFromBase58(receiver); err != nil {
					return fmt.Errorf("invalid receiver: %w", err)
				}
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}

			if sol {
				lamports, err := toNative(amount, 9)
				if err != nil {
					return err
				}
				tx, err := builder.WithdrawSolFees(ctx, a.wallet.PublicKey, lamports, to)
				if err != nil {
					return err
				}
				return a.submit(ctx, "withdrawSolFees", tx, style.KV{Key: "Amount", Value: amount + " SOL"})
			}

			mint, err := a.mint(token)
			if err != nil {
				return err
			}
			decimals, err := a.decimals(ctx, mint)
			if err != nil {
				return err
			}
			native, err := toNative(amount, decimals)
			if err != nil {
				return err
			}
			tx, err := builder.WithdrawFees(ctx, perpetuals.WithdrawFeesRequest{
				Admin:    a.wallet.PublicKey,
				PoolName: poolName,
				Mint:     mint,
				Amount:   native,
				Receiver: to,
			})
			if err != nil {
				return err
			}
			return a.submit(ctx, "withdrawFees", tx,
				style.KV{Key: "Pool", Value: poolName},
				style.KV{Key: "Mint", Value: mint.String()},
				style.KV{Key: "Amount", Value: amount},
			)
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol or mint")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in token units (SOL with --sol)")
	cmd.Flags().StringVar(&receiver, "receiver", "", "receiving wallet (default: signer)")
	cmd.Flags().BoolVar(&sol, "sol", false, "withdraw lamports held by the transfer authority")
	return cmd
}

func newUpdateAumCommand(a *app) *cobra.Command {
	var poolName string
	cmd := &cobra.Command{
		Use:   "update-aum",
		Short: "Recompute the pool assets under management",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin update-aum", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := a.fill("Update AUM", textField("pool", "Pool name", &poolName)); err != nil {
				return err
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.UpdatePoolAum(ctx, a.wallet.PublicKey, poolName)
			if err != nil {
				return err
			}
			return a.submit(ctx, "updatePoolAum", tx, style.KV{Key: "Pool", Value: poolName})
		}),
	}
	cmd.Flags().StringVarP(&poolName, "pool", "p", "", "pool name")
	return cmd
}

func newSetTestTimeCommand(a *app) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:    "set-test-time",
		Short:  "Set the program clock (test builds only)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: a.tracked("admin set-test-time", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --time: %w", err)
			}
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, err := builder.SetTestTime(ctx, a.wallet.PublicKey, t.Unix())
			if err != nil {
				return err
			}
			return a.submit(ctx, "setTestTime", tx, style.KV{Key: "Time", Value: t.UTC().Format(time.RFC3339)})
		}),
	}
	cmd.Flags().StringVar(&at, "time", "", "RFC3339 timestamp")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func newCreateUSDCMintCommand(a *app) *cobra.Command {
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "create-usdc-mint",
		Short: "Create a test USDC mint owned by the signer",
		Args:  cobra.NoArgs,
		RunE: a.tracked("admin create-usdc-mint", func(ctx context.Context, _ *cobra.Command, _ []string) error {
			builder, err := a.trader()
			if err != nil {
				return err
			}
			tx, mint, err := builder.CreateStableMint(ctx, a.wallet.PublicKey, decimals)
			if err != nil {
				return err
			}
			return a.submit(ctx, "createUsdcMint", tx,
				style.KV{Key: "Mint", Value: mint.String()},
				style.KV{Key: "Decimals", Value: fmt.Sprint(decimals)},
				style.KV{Key: "Mint authority", Value: a.wallet.PublicKey.String()},
			)
		}),
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", perpetuals.USDDecimals, "mint decimals")
	return cmd
}

func joinKeys(keys []solana.PublicKey) string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return strings.Join(out, ", ")
}

func describeRatios(ratios []perpetuals.TokenRatios) string {
	out := make([]string, len(ratios))
	for i, r := range ratios {
		out[i] = fmt.Sprintf("%s [%s..%s]", bps(r.Target), bps(r.Min), bps(r.Max))
	}
	return strings.Join(out, ", ")
}
