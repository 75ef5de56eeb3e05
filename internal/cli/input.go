// internal/cli/input.go
package cli

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/types"
	"github.com/rovshanmuradov/perps-client/internal/ui/component"
)

// field - значение флага, которое можно запросить интерактивно.
type field struct {
	flag     string
	label    string
	target   *string
	kind     component.FieldType
	options  []string
	validate func(string) error
}

// fill запрашивает незаданные значения. С --yes пустое значение - ошибка.
func (a *app) fill(title string, fields ...field) error {
	var missing []field
	for _, f := range fields {
		if strings.TrimSpace(*f.target) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if a.flags.yes || a.prompter == nil {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = "--" + f.flag
		}
		return fmt.Errorf("missing required flags: %s", strings.Join(names, ", "))
	}

	form := make([]component.FormField, len(missing))
	for i, f := range missing {
		form[i] = component.FormField{
			Name:       f.flag,
			Label:      f.label,
			Type:       f.kind,
			Options:    f.options,
			Required:   true,
			Validation: f.validate,
		}
	}
	values, err := a.prompter.Ask(title, form)
	if err != nil {
		return err
	}
	for _, f := range missing {
		*f.target = values[f.flag]
	}
	return nil
}

func textField(flag, label string, target *string) field {
	return field{flag: flag, label: label, target: target}
}

func amountField(flag, label string, target *string) field {
	return field{flag: flag, label: label, target: target, kind: component.FieldTypeNumber, validate: validateAmount}
}

func sideField(target *string) field {
	return field{flag: "side", label: "Side", target: target, kind: component.FieldTypeSelect, options: []string{"long", "short"}}
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// toNative переводит UI-количество в native-единицы с decimals знаками.
// Дробная часть сверх decimals отбрасывается.
func toNative(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", amount)
	}
	native := d.Shift(int32(decimals)).Truncate(0)
	if !native.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: overflows u64 at %d decimals", amount, decimals)
	}
	return native.BigInt().Uint64(), nil
}

func scaled(v uint64, exp int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), exp)
}

// fromNative - обратное преобразование для вывода.
func fromNative(amount uint64, decimals uint8) string {
	return scaled(amount, -int32(decimals)).String()
}

// usdDecimal - USD-значение программы как decimal для расчетов.
func usdDecimal(v uint64) decimal.Decimal {
	return scaled(v, -perpetuals.PriceDecimals)
}

// usd форматирует USD-значение программы (PriceDecimals знаков).
func usd(amount uint64) string {
	return "$" + scaled(amount, -perpetuals.PriceDecimals).StringFixed(2)
}

func usd128(amount uint128.Uint128) string {
	return "$" + decimal.NewFromBigInt(amount.Big(), -perpetuals.PriceDecimals).StringFixed(2)
}

// price форматирует цену программы без округления до центов.
func price(p uint64) string {
	return fromNative(p, perpetuals.PriceDecimals)
}

// bps выводит значение в базисных пунктах как процент.
func bps(v uint64) string {
	return scaled(v, -2).String() + "%"
}

// leverage выводит плечо в единицах BPSPower как множитель.
func leverage(v uint64) string {
	return scaled(v, -4).String() + "x"
}

// decimals возвращает decimals mint из сети (с кэшем).
func (a *app) decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if _, err := a.connect(); err != nil {
		return 0, err
	}
	return a.tokens.Decimals(ctx, a.client, mint)
}

// mint разрешает символ, mint или feed id через каталог; иначе ожидает base58.
func (a *app) mint(key string) (solana.PublicKey, error) {
	if asset, err := a.catalog.Resolve(key); err == nil && !asset.Virtual() {
		return asset.Mint, nil
	}
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(key))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unknown token %q: not a catalog symbol or mint address", key)
	}
	return pk, nil
}

func parseKeys(values []string) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(values))
	for _, v := range values {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", v, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// parseRatios разбирает "target,min,max|target,min,max".
func parseRatios(s string) ([]perpetuals.TokenRatios, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []perpetuals.TokenRatios
	for _, group := range strings.Split(s, "|") {
		parts := strings.Split(group, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid ratio %q: expected target,min,max", group)
		}
		var values [3]uint64
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ratio %q: %w", group, err)
			}
			values[i] = v
		}
		out = append(out, perpetuals.TokenRatios{Target: values[0], Min: values[1], Max: values[2]})
	}
	return out, nil
}

// slippage - процент допустимого проскальзывания; 0 отключает ограничение.
func slippage(percent float64) types.SlippageConfig {
	if percent == 0 {
		return types.SlippageConfig{Type: types.SlippageNone}
	}
	return types.Percent(percent)
}

// permissionFlags регистрирует флаги --allow-*.
type permissionFlags struct {
	values map[string]*bool
}

var permissionNames = []string{
	"swap", "add-liquidity", "remove-liquidity", "open-position",
	"close-position", "pnl-withdrawal", "collateral-withdrawal", "size-change",
}

func addPermissionFlags(cmd *cobra.Command) *permissionFlags {
	p := &permissionFlags{values: make(map[string]*bool, len(permissionNames))}
	for _, name := range permissionNames {
		p.values[name] = cmd.Flags().Bool("allow-"+name, true, "allow "+strings.ReplaceAll(name, "-", " "))
	}
	return p
}

func (p *permissionFlags) permissions() perpetuals.Permissions {
	return perpetuals.Permissions{
		AllowSwap:                 *p.values["swap"],
		AllowAddLiquidity:         *p.values["add-liquidity"],
		AllowRemoveLiquidity:      *p.values["remove-liquidity"],
		AllowOpenPosition:         *p.values["open-position"],
		AllowClosePosition:        *p.values["close-position"],
		AllowPnlWithdrawal:        *p.values["pnl-withdrawal"],
		AllowCollateralWithdrawal: *p.values["collateral-withdrawal"],
		AllowSizeChange:           *p.values["size-change"],
	}
}

// describePermissions перечисляет включенные разрешения.
func describePermissions(p perpetuals.Permissions) string {
	flags := map[string]bool{
		"swap":                  p.AllowSwap,
		"add-liquidity":         p.AllowAddLiquidity,
		"remove-liquidity":      p.AllowRemoveLiquidity,
		"open-position":         p.AllowOpenPosition,
		"close-position":        p.AllowClosePosition,
		"pnl-withdrawal":        p.AllowPnlWithdrawal,
		"collateral-withdrawal": p.AllowCollateralWithdrawal,
		"size-change":           p.AllowSizeChange,
	}
	var on []string
	for name, allowed := range flags {
		if allowed {
			on = append(on, name)
		}
	}
	if len(on) == 0 {
		return "none"
	}
	sort.Strings(on)
	return strings.Join(on, ", ")
}
