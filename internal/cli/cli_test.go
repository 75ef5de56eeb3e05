package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/perps-client/internal/config"
	"github.com/rovshanmuradov/perps-client/internal/oracle"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/ui/component"
)

type fakePrompter struct {
	answers map[string]string
	confirm bool
	asked   []string
}

func (p *fakePrompter) Ask(_ string, fields []component.FormField) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		p.asked = append(p.asked, f.Name)
		out[f.Name] = p.answers[f.Name]
	}
	return out, nil
}

func (p *fakePrompter) Confirm(string) (bool, error) { return p.confirm, nil }

func TestToNative(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"1.5", 6, 1_500_000, false},
		{" 2 ", 9, 2_000_000_000, false},
		{"0.0000001", 6, 0, false},
		{"1.23456789", 2, 123, false},
		{"abc", 6, 0, true},
		{"-1", 6, 0, true},
		{"18446744073709551616", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := toNative(tt.amount, tt.decimals)
		if tt.wantErr {
			assert.Error(t, err, tt.amount)
			continue
		}
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got, tt.amount)
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.5", fromNative(1_500_000, 6))
	assert.Equal(t, "$123.46", usd(123_456_789))
	assert.Equal(t, "101.25", price(101_250_000))
	assert.Equal(t, "1%", bps(100))
	assert.Equal(t, "10x", leverage(100_000))
	assert.Equal(t, "-", unixTime(0))
	assert.Equal(t, "2024-01-01T00:00:00Z", unixTime(1704067200))
}

func TestParseRatios(t *testing.T) {
	got, err := parseRatios("5000,10,10000 | 5000,0,10000")
	require.NoError(t, err)
	assert.Equal(t, []perpetuals.TokenRatios{
		{Target: 5000, Min: 10, Max: 10000},
		{Target: 5000, Min: 0, Max: 10000},
	}, got)

	empty, err := parseRatios("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = parseRatios("5000,10")
	assert.Error(t, err)
	_, err = parseRatios("5000,x,10000")
	assert.Error(t, err)
}

func TestEvenRatios(t *testing.T) {
	ratios := evenRatios(3)
	require.Len(t, ratios, 3)
	var total uint64
	for _, r := range ratios {
		total += r.Target
		assert.Equal(t, uint64(10), r.Min)
		assert.Equal(t, perpetuals.BPSPower, r.Max)
	}
	assert.Equal(t, perpetuals.BPSPower, total)
	assert.Equal(t, uint64(3334), ratios[2].Target)

	assert.Nil(t, evenRatios(0))
	assert.Equal(t, []perpetuals.TokenRatios{{Target: 10000, Min: 10, Max: 10000}}, evenRatios(1))
}

func TestCustodyFile_Defaults(t *testing.T) {
	f, err := loadCustodyFile("")
	require.NoError(t, err)
	cfg, err := f.toConfig()
	require.NoError(t, err)

	assert.Equal(t, perpetuals.FeesLinear, cfg.Fees.Mode)
	assert.Equal(t, 100*perpetuals.BPSPower, cfg.Pricing.MaxLeverage)
	assert.True(t, cfg.Permissions.AllowOpenPosition)
	assert.Equal(t, uint32(60), cfg.Oracle.MaxPriceAgeSec)
	assert.Empty(t, cfg.Ratios)
}

func TestCustodyFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stable: true
oracle:
  type: custom
  feed_id: "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"
pricing:
  max_leverage: 500000
fees:
  mode: optimal
permissions:
  open_position: false
ratios:
  - {target: 6000, min: 10, max: 10000}
  - {target: 4000, min: 10, max: 10000}
`), 0o600))

	f, err := loadCustodyFile(path)
	require.NoError(t, err)
	cfg, err := f.toConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsStable)
	assert.Equal(t, perpetuals.OracleCustom, cfg.Oracle.OracleType)
	assert.Equal(t, "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d", oracle.FeedID(cfg.Oracle.FeedID).String())
	assert.Equal(t, uint64(500000), cfg.Pricing.MaxLeverage)
	// незаданные ключи остаются по умолчанию
	assert.Equal(t, uint64(100), cfg.Pricing.TradeSpreadLong)
	assert.Equal(t, perpetuals.FeesOptimal, cfg.Fees.Mode)
	assert.False(t, cfg.Permissions.AllowOpenPosition)
	assert.True(t, cfg.Permissions.AllowSwap)
	assert.Len(t, cfg.Ratios, 2)
}

func TestCustodyFile_Invalid(t *testing.T) {
	_, err := loadCustodyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	f := defaultCustodyFile()
	f.Fees.Mode = "quadratic"
	_, err = f.toConfig()
	assert.Error(t, err)
}

func TestOraclePrice(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p, err := oraclePrice("101.5", "", "0.05", -6, now)
	require.NoError(t, err)
	assert.Equal(t, perpetuals.SetCustomOraclePriceParams{
		Price:       101_500_000,
		Expo:        -6,
		Conf:        50_000,
		Ema:         101_500_000,
		PublishTime: 1_700_000_000,
	}, p)

	_, err = oraclePrice("1", "", "0", 2, now)
	assert.Error(t, err)
}

func TestTradeSide(t *testing.T) {
	side, err := tradeSide("Short")
	require.NoError(t, err)
	assert.Equal(t, perpetuals.SideShort, side)

	_, err = tradeSide("none")
	assert.ErrorIs(t, err, perpetuals.ErrInvalidSide)
	_, err = tradeSide("sideways")
	assert.Error(t, err)
}

func TestOptionalPrice(t *testing.T) {
	p, err := optionalPrice("")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = optionalPrice("1.25")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(1_250_000), *p)
}

func TestPositionLeverage(t *testing.T) {
	assert.Equal(t, "2.50x", positionLeverage(&perpetuals.PositionAccount{SizeUsd: 250_000_000, CollateralUsd: 100_000_000}))
	assert.Equal(t, "-", positionLeverage(&perpetuals.PositionAccount{SizeUsd: 1}))
}

func TestFill_AsksOnlyMissing(t *testing.T) {
	prompter := &fakePrompter{answers: map[string]string{"token": "SOL", "amount": "3"}}
	a := newApp(&bytes.Buffer{}, prompter)

	pool, token, amount := "main", "", ""
	err := a.fill("Add liquidity",
		textField("pool", "Pool", &pool),
		textField("token", "Token", &token),
		amountField("amount", "Amount", &amount),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"token", "amount"}, prompter.asked)
	assert.Equal(t, "main", pool)
	assert.Equal(t, "SOL", token)
	assert.Equal(t, "3", amount)
}

func TestFill_NonInteractive(t *testing.T) {
	a := newApp(&bytes.Buffer{}, &fakePrompter{})
	a.flags.yes = true

	pool, token := "", "SOL"
	err := a.fill("Custody", textField("pool", "Pool", &pool), textField("token", "Token", &token))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pool")
	assert.NotContains(t, err.Error(), "--token")
}

func TestMint(t *testing.T) {
	a := newApp(&bytes.Buffer{}, nil)
	a.flags.configPath = isolate(t)
	require.NoError(t, a.load())

	sol, err := a.mint("sol")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", sol.String())

	raw, err := a.mint("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", raw.String())

	// у синтетических инструментов нет mint
	_, err = a.mint("EUR")
	assert.Error(t, err)
}

// runCLI выполняет команду с изолированными конфигом и логом.
func runCLI(t *testing.T, configPath string, prompter component.Prompter, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"--config", configPath}, args...)
	err := Execute(context.Background(), args, Options{Out: &out, Prompter: prompter})
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PERPS_LOG_FILE", filepath.Join(dir, "perps.log"))
	t.Setenv("PERPS_RPC_URLS", "")
	return filepath.Join(dir, "config.yaml")
}

func TestConfigCommands(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, &fakePrompter{}, "config", "set-env", "devnet")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = runCLI(t, path, &fakePrompter{}, "config", "set-rpc", "--env", "devnet", "http://localhost:8899", "https://api.devnet.solana.com")
	require.NoError(t, err)

	out, err := runCLI(t, path, &fakePrompter{}, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "devnet")
	assert.Contains(t, out, "http://localhost:8899, https://api.devnet.solana.com")

	_, err = runCLI(t, path, &fakePrompter{}, "config", "set-env", "localnet")
	assert.ErrorIs(t, err, config.ErrInvalidEnvironment)

	_, err = runCLI(t, path, &fakePrompter{}, "config", "set-rpc", "ftp://bad")
	assert.Error(t, err)
}

func TestInfoAssets(t *testing.T) {
	path := isolate(t)

	out, err := runCLI(t, path, nil, "info", "assets", "--type", "FX")
	require.NoError(t, err)
	assert.Contains(t, out, "EUR")
	assert.Contains(t, out, "virtual")
	assert.NotContains(t, out, "BONK")

	out, err = runCLI(t, path, nil, "info", "assets", "--stable")
	require.NoError(t, err)
	assert.Contains(t, out, "USDC")
	assert.NotContains(t, out, "Solana")
}

func TestMissingFlagsWithYes(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, &fakePrompter{}, "--yes", "liquidity", "add", "--pool", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token, --amount")

	_, err = runCLI(t, path, &fakePrompter{}, "-y", "swap", "--from", "SOL", "--to", "USDC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pool, --amount")
}

func TestListPositionsFlagPairing(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, nil, "position", "list", "--pool", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pool and --token")
}

func TestExportRows(t *testing.T) {
	entries := []perpetuals.PositionEntry{{
		Position: &perpetuals.PositionAccount{
			Side:          perpetuals.SideLong,
			Price:         150_250_000,
			SizeUsd:       1_000_000_000,
			CollateralUsd: 100_000_000,
			OpenTime:      1704067200,
		},
	}}
	rows := exportRows(entries)
	require.Len(t, rows, 1)
	assert.Equal(t, "long", rows[0].Side)
	assert.Equal(t, "150.25", rows[0].EntryPrice.String())
	assert.Equal(t, "10", rows[0].Leverage().String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].OpenTime)
}

func TestListPositionsInvalidExport(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, nil, "position", "list", "--export", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestWatchInvalidThreshold(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, &fakePrompter{}, "position", "watch",
		"-p", "main", "-t", "SOL", "-c", "USDC", "-s", "long",
		"--owner", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"--loss-limit", "-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--loss-limit")
}

func TestFaucetCommands(t *testing.T) {
	path := isolate(t)

	_, err := runCLI(t, path, &fakePrompter{}, "--yes", "faucet", "mint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")

	_, err = runCLI(t, path, &fakePrompter{}, "faucet", "mint", "--user", "not-a-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --user")

	_, err = runCLI(t, path, nil, "faucet", "show")
	assert.ErrorIs(t, err, config.ErrNoFaucetMint)

	_, err = runCLI(t, path, nil, "faucet", "show", "--mint", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid faucet mint")
}
