package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const btcFeed = "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

func TestDefaultCatalog(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	bySymbol, err := d.BySymbol("btc")
	require.NoError(t, err)
	byFeed, err := d.ByFeedID("0x" + btcFeed)
	require.NoError(t, err)
	byMint, err := d.ByMint(bySymbol.Mint)
	require.NoError(t, err)

	assert.Same(t, bySymbol, byFeed)
	assert.Same(t, bySymbol, byMint)
	assert.Equal(t, uint8(8), bySymbol.Decimals)
}

func TestAll_OneRecordPerFeed(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	all := d.All()
	seen := make(map[string]bool)
	for _, a := range all {
		key := a.FeedID.String()
		assert.False(t, seen[key], "duplicate %s", a.Symbol)
		seen[key] = true
	}
	assert.Len(t, all, len(d.bySymbol))

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Symbol, all[i].Symbol)
	}
}

func TestByTypeAndStability(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	stable := d.ByStability(true)
	require.Len(t, stable, 2)
	assert.Equal(t, "USDC", stable[0].Symbol)
	assert.Equal(t, "USDT", stable[1].Symbol)

	fx := d.ByType(TypeFX)
	require.NotEmpty(t, fx)
	for _, a := range fx {
		assert.True(t, a.Virtual(), a.Symbol)
	}
	assert.Empty(t, d.ByType(TypeEquity))
}

func TestNotFound(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	_, err = d.BySymbol("DOGE")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "DOGE", nf.Key)
	assert.Equal(t, "symbol", nf.KeySpace)

	_, err = d.ByMint(solana.NewWallet().PublicKey())
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "mint", nf.KeySpace)

	_, err = d.ByFeedID("not-hex")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "feed id", nf.KeySpace)
}

func TestResolve(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	for _, key := range []string{"sol", solana.WrappedSol.String(), "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"} {
		a, err := d.Resolve(key)
		require.NoError(t, err, key)
		assert.Equal(t, "SOL", a.Symbol)
	}

	_, err = d.Resolve("nope")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":        "assets: []",
		"bad type":     "assets:\n  - {symbol: X, type: Stocks, feed_id: " + btcFeed + "}",
		"bad feed":     "assets:\n  - {symbol: X, type: Crypto, feed_id: abc}",
		"bad mint":     "assets:\n  - {symbol: X, type: Crypto, feed_id: " + btcFeed + ", mint: zzz}",
		"dup symbol":   "assets:\n  - {symbol: X, type: Crypto, feed_id: " + btcFeed + "}\n  - {symbol: x, type: Crypto, feed_id: " + btcFeed + "}",
		"no symbol":    "assets:\n  - {type: Crypto, feed_id: " + btcFeed + "}",
		"invalid yaml": "assets: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  - {symbol: btc, name: Bitcoin, type: Crypto, feed_id: "+btcFeed+", decimals: 8}\n"), 0o600))

	d, err := LoadFile(path)
	require.NoError(t, err)
	a, err := d.BySymbol("BTC")
	require.NoError(t, err)
	assert.True(t, a.Virtual())
	assert.Len(t, d.All(), 1)
}
