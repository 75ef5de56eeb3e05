package perpetuals

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_PoolIsDeterministicAcrossInstances(t *testing.T) {
	a := NewResolver(DefaultProgramID)
	b := NewResolver(DefaultProgramID)

	pa, err := a.Derive(LabelPool, SeedString("forex"))
	require.NoError(t, err)
	pb, err := b.Derive(LabelPool, SeedString("forex"))
	require.NoError(t, err)

	assert.Equal(t, pa, pb)
	pool, err := a.Pool("forex")
	require.NoError(t, err)
	assert.Equal(t, pa.Address, pool)
	assert.False(t, pa.Address.IsOnCurve())
}

func TestResolver_MatchesRawDerivation(t *testing.T) {
	r := NewResolver(DefaultProgramID)
	pool, err := r.Pool("crypto")
	require.NoError(t, err)
	mint := solana.WrappedSol

	want, wantBump, err := solana.FindProgramAddress(
		[][]byte{[]byte("custody"), pool.Bytes(), mint.Bytes()}, DefaultProgramID)
	require.NoError(t, err)

	got, err := r.Derive(LabelCustody, SeedAddress(pool), SeedAddress(mint))
	require.NoError(t, err)
	assert.Equal(t, want, got.Address)
	assert.Equal(t, wantBump, got.Bump)
	assert.Equal(t, want, r.Custody(pool, mint))
}

func TestResolver_LabelsDoNotCollide(t *testing.T) {
	r := NewResolver(DefaultProgramID)
	pool, err := r.Pool("forex")
	require.NoError(t, err)
	mint := solana.WrappedSol

	seen := map[solana.PublicKey]string{}
	for _, label := range []string{LabelCustody, LabelCustodyTokenAccount, LabelOracleAccount, LabelPool, LabelLPTokenMint} {
		d, err := r.Derive(label, SeedAddress(pool), SeedAddress(mint))
		require.NoError(t, err)
		prev, dup := seen[d.Address]
		assert.False(t, dup, "%s collides with %s", label, prev)
		seen[d.Address] = label
	}
}

func TestResolver_DifferentProgramsDiffer(t *testing.T) {
	other := solana.NewWallet().PublicKey()
	assert.NotEqual(t, NewResolver(DefaultProgramID).Multisig(), NewResolver(other).Multisig())
}

func TestResolver_Position(t *testing.T) {
	r := NewResolver(DefaultProgramID)
	owner := solana.NewWallet().PublicKey()
	pool, err := r.Pool("forex")
	require.NoError(t, err)
	custody := r.Custody(pool, solana.WrappedSol)

	long, err := r.Position(owner, pool, custody, SideLong)
	require.NoError(t, err)
	short, err := r.Position(owner, pool, custody, SideShort)
	require.NoError(t, err)
	assert.NotEqual(t, long, short)

	want, _, err := solana.FindProgramAddress([][]byte{
		[]byte("position"), owner.Bytes(), pool.Bytes(), custody.Bytes(), {1},
	}, DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, long)

	_, err = r.Position(owner, pool, custody, SideNone)
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestResolver_ProgramData(t *testing.T) {
	r := NewResolver(DefaultProgramID)
	want, _, err := solana.FindProgramAddress([][]byte{DefaultProgramID.Bytes()}, solana.BPFLoaderUpgradeableProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, r.ProgramData())
}

func TestResolver_PoolNameSeedLimit(t *testing.T) {
	r := NewResolver(DefaultProgramID)

	_, err := r.Pool(strings.Repeat("a", 32))
	require.NoError(t, err)

	for _, name := range []string{"", strings.Repeat("a", 33), strings.Repeat("a", 40), strings.Repeat("ж", 17)} {
		assert.NotPanics(t, func() {
			_, err = r.Pool(name)
		})
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, name)
	}
}
