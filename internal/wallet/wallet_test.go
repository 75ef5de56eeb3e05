package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/utils/metrics"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *mockSender) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	args := m.Called(ctx, signature, commitment)
	return args.Error(0)
}

func writeKeypair(t *testing.T, key solana.PrivateKey) string {
	t.Helper()
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	t.Run("json array", func(t *testing.T) {
		w, err := Load(writeKeypair(t, key))
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey(), w.PublicKey)
	})

	t.Run("base58", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "id.txt")
		require.NoError(t, os.WriteFile(path, []byte(key.String()+"\n"), 0o600))
		w, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey().String(), w.String())
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("  ")
		assert.ErrorIs(t, err, ErrNoKeypairPath)
	})

	t.Run("short key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.json")
		require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("byte out of range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("[256]"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func unsignedTransfer(t *testing.T, payer solana.PublicKey, extra solana.PrivateKey) *transaction.Unsigned {
	t.Helper()
	ix := system.NewTransferInstruction(1, extra.PublicKey(), payer).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	return &transaction.Unsigned{Tx: tx, ExtraSigners: []solana.PrivateKey{extra}}
}

func TestSignTransaction_WithExtraSigner(t *testing.T) {
	w, err := NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)
	extra := solana.NewWallet().PrivateKey
	u := unsignedTransfer(t, w.PublicKey, extra)

	require.NoError(t, w.SignTransaction(u.Tx, u.ExtraSigners...))
	require.Len(t, u.Tx.Signatures, 2)
	assert.NoError(t, u.Tx.VerifySignatures())

	u = unsignedTransfer(t, w.PublicKey, extra)
	assert.Error(t, w.SignTransaction(u.Tx), "missing extra signer")
}

func TestSignAndSend(t *testing.T) {
	ctx := context.Background()
	w, err := NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)
	sig := solana.Signature{7}

	t.Run("confirmed", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		w.SetMetrics(metrics.NewTxMetrics(reg))
		defer w.SetMetrics(nil)

		s := new(mockSender)
		u := unsignedTransfer(t, w.PublicKey, solana.NewWallet().PrivateKey)
		s.On("SendTransactionWithOpts", ctx, u.Tx, blockchain.TransactionOptions{}).Return(sig, nil).Once()
		s.On("WaitForTransactionConfirmation", ctx, sig, rpc.CommitmentConfirmed).Return(nil).Once()

		got, err := w.SignAndSend(ctx, s, u, SendOptions{Operation: "swap"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, sig, got)
		s.AssertExpectations(t)
		assert.Equal(t, 1, testutil.CollectAndCount(reg, "perps_transactions_total"))
	})

	t.Run("zero blockhash rejected before send", func(t *testing.T) {
		s := new(mockSender)
		u := unsignedTransfer(t, w.PublicKey, solana.NewWallet().PrivateKey)
		u.Tx.Message.RecentBlockhash = solana.Hash{}

		_, err := w.SignAndSend(ctx, s, u, SendOptions{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidBlockhash)
		s.AssertNotCalled(t, "SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("send failure is not retried", func(t *testing.T) {
		s := new(mockSender)
		u := unsignedTransfer(t, w.PublicKey, solana.NewWallet().PrivateKey)
		s.On("SendTransactionWithOpts", ctx, u.Tx, mock.Anything).Return(solana.Signature{}, errors.New("blockhash not found")).Once()

		_, err := w.SignAndSend(ctx, s, u, SendOptions{Operation: "swap"}, zap.NewNop())
		assert.ErrorContains(t, err, "blockhash not found")
		s.AssertNumberOfCalls(t, "SendTransactionWithOpts", 1)
		s.AssertNotCalled(t, "WaitForTransactionConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirmation failure keeps signature", func(t *testing.T) {
		s := new(mockSender)
		u := unsignedTransfer(t, w.PublicKey, solana.NewWallet().PrivateKey)
		opts := SendOptions{TransactionOptions: blockchain.TransactionOptions{PreflightCommitment: rpc.CommitmentFinalized}}
		failed := errors.New("transaction failed on chain")
		s.On("SendTransactionWithOpts", ctx, u.Tx, opts.TransactionOptions).Return(sig, nil).Once()
		s.On("WaitForTransactionConfirmation", ctx, sig, rpc.CommitmentFinalized).Return(failed).Once()

		got, err := w.SignAndSend(ctx, s, u, opts, zap.NewNop())
		assert.ErrorIs(t, err, failed)
		assert.Equal(t, sig, got)
	})
}

func TestGetATA_Cached(t *testing.T) {
	w, err := NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	expected, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, solana.WrappedSol)
	require.NoError(t, err)

	require.NoError(t, w.PrecomputeATAs([]solana.PublicKey{solana.WrappedSol}))
	assert.Len(t, w.ataCache, 1)

	ata, err := w.GetATA(solana.WrappedSol)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)
}
