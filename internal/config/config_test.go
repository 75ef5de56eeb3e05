package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	_, cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Testnet, cfg.Environment)
	assert.Equal(t, DefaultRPCURLs.Testnet, cfg.Endpoints(cfg.Environment))
	assert.Equal(t, uint32(DefaultComputeUnitLimit), cfg.ComputeUnitLimit)
	assert.Equal(t, DefaultConfirmTimeout, cfg.ConfirmTimeout)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
environment: devnet
keypair_path: /tmp/id.json
compute_unit_price: 5000
confirm_timeout: 30s
feed_shard: 2
rpc_urls:
  devnet:
    - http://localhost:8899
    - https://api.devnet.solana.com
`)
	_, cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Devnet, cfg.Environment)
	assert.Equal(t, "/tmp/id.json", cfg.KeypairPath)
	assert.Equal(t, uint64(5000), cfg.ComputeUnitPrice)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint16(2), cfg.FeedShard)
	assert.Equal(t, []string{"http://localhost:8899", "https://api.devnet.solana.com"}, cfg.Endpoints(Devnet))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PERPS_ENVIRONMENT", "mainnet")
	t.Setenv("PERPS_RPC_URLS", " http://a.example , ,http://b.example")

	_, cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Mainnet, cfg.Environment)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Endpoints(Mainnet))
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := map[string]struct {
		body string
		want error
	}{
		"bad environment": {"environment: localnet", ErrInvalidEnvironment},
		"empty endpoints": {"rpc_urls:\n  testnet: []", ErrNoEndpoints},
		"ws endpoint":     {"rpc_urls:\n  testnet: [\"ws://localhost:8900\"]", ErrInvalidURL},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err := Load(writeConfig(t, "program_id: not-a-key"))
	assert.ErrorContains(t, err, "program_id")
}

func TestManager_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, _, err := Load(path)
	require.NoError(t, err)

	m.Set("environment", string(Devnet))
	m.Set("keypair_path", "/keys/admin.json")
	m.Set("rpc_urls.devnet", []string{"http://127.0.0.1:8899"})
	require.NoError(t, m.Save())
	assert.FileExists(t, path)

	_, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Devnet, cfg.Environment)
	assert.Equal(t, "/keys/admin.json", cfg.KeypairPath)
	assert.Equal(t, []string{"http://127.0.0.1:8899"}, cfg.Endpoints(Devnet))
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment(" MAINNET ")
	require.NoError(t, err)
	assert.Equal(t, Mainnet, env)

	_, err = ParseEnvironment("local")
	assert.ErrorIs(t, err, ErrInvalidEnvironment)
}

func TestFaucetSettings(t *testing.T) {
	_, cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	program, err := cfg.FaucetProgram()
	require.NoError(t, err)
	assert.Equal(t, DefaultFaucetProgramID, program.String())

	_, err = cfg.FaucetMint("")
	assert.ErrorIs(t, err, ErrNoFaucetMint)

	path := writeConfig(t, `
faucet:
  mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
`)
	_, cfg, err = Load(path)
	require.NoError(t, err)
	mint, err := cfg.FaucetMint("")
	require.NoError(t, err)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", mint.String())

	explicit, err := cfg.FaucetMint("So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", explicit.String())

	_, err = cfg.FaucetMint("not-a-key")
	assert.Error(t, err)

	_, _, err = Load(writeConfig(t, "faucet:\n  program_id: bad\n"))
	assert.Error(t, err)
}
