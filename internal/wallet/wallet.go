// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/associatedtoken"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/utils/metrics"
)

var (
	// ErrNoKeypairPath - путь к ключу не задан в конфигурации.
	ErrNoKeypairPath    = errors.New("keypair path is not configured")
	ErrInvalidBlockhash = errors.New("transaction has no recent blockhash")
	ErrNoInstructions   = errors.New("transaction has no instructions")
)

// SendOptions - параметры отправки. Operation используется в логах и метриках.
type SendOptions struct {
	blockchain.TransactionOptions
	Operation string
}

// Sender - часть RPC-клиента, нужная для отправки и подтверждения.
type Sender interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error
}

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.RWMutex
	ataCache map[solana.PublicKey]solana.PublicKey
	metrics  *metrics.TxMetrics
}

// SetMetrics подключает учет отправленных транзакций.
func (w *Wallet) SetMetrics(m *metrics.TxMetrics) {
	w.metrics = m
}

func newWallet(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return newWallet(solana.PrivateKey(privateKeyBytes)), nil
}

// Load читает ключ в формате solana-keygen (JSON-массив из 64 байт).
// Если файл не JSON, содержимое трактуется как base58.
func Load(path string) (*Wallet, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoKeypairPath
	}
	data, err := os.ReadFile(filepath.Clean(expandHome(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return NewWallet(trimmed)
	}

	var ints []int
	if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
		return nil, fmt.Errorf("failed to parse keypair file %s: %w", path, err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair file %s: byte %d out of range: %d", path, i, v)
		}
		raw[i] = byte(v)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid keypair length: expected 64 bytes, got %d", len(raw))
	}
	return newWallet(solana.PrivateKey(raw)), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SignTransaction подписывает транзакцию ключом кошелька и дополнительными ключами.
// Подписываются только те ключи, которые требует сообщение.
func (w *Wallet) SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		for i := range extra {
			if extra[i].PublicKey().Equals(key) {
				return &extra[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SignAndSend подписывает собранную транзакцию, проверяет ее, отправляет один раз
// и ждет подтверждения. Повторной отправки нет.
func (w *Wallet) SignAndSend(ctx context.Context, sender Sender, unsigned *transaction.Unsigned, opts SendOptions, logger *zap.Logger) (solana.Signature, error) {
	if unsigned == nil || unsigned.Tx == nil {
		return solana.Signature{}, ErrNoInstructions
	}
	logger = logger.Named("wallet").With(zap.String("operation", opts.Operation))

	tx := unsigned.Tx
	if err := w.SignTransaction(tx, unsigned.ExtraSigners...); err != nil {
		return solana.Signature{}, err
	}
	if err := validate(tx); err != nil {
		return solana.Signature{}, err
	}

	start := time.Now()
	sig, err := sender.SendTransactionWithOpts(ctx, tx, opts.TransactionOptions)
	if err != nil {
		w.metrics.ObserveTransaction(opts.Operation, metrics.TxSendFailed, time.Since(start))
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	logger.Info("Transaction sent", zap.String("signature", sig.String()))

	commitment := opts.PreflightCommitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	if err := sender.WaitForTransactionConfirmation(ctx, sig, commitment); err != nil {
		w.metrics.ObserveTransaction(opts.Operation, metrics.TxFailed, time.Since(start))
		return sig, fmt.Errorf("transaction %s: %w", sig, err)
	}
	w.metrics.ObserveTransaction(opts.Operation, metrics.TxConfirmed, time.Since(start))
	logger.Info("Transaction confirmed",
		zap.String("signature", sig.String()),
		zap.Duration("took", time.Since(start)))
	return sig, nil
}

// validate проверяет подписанную транзакцию перед отправкой.
func validate(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	if len(tx.Message.Instructions) == 0 {
		return ErrNoInstructions
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("invalid signatures: %w", err)
	}
	return nil
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для заданного токена (mint).
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.RLock()
	ata, ok := w.ataCache[mint]
	w.mu.RUnlock()
	if ok {
		return ata, nil
	}

	ata, err := associatedtoken.Address(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.mu.Lock()
	w.ataCache[mint] = ata
	w.mu.Unlock()
	return ata, nil
}

// PrecomputeATAs позволяет заранее рассчитать ATA для списка токенов.
func (w *Wallet) PrecomputeATAs(mints []solana.PublicKey) error {
	for _, mint := range mints {
		if _, err := w.GetATA(mint); err != nil {
			return fmt.Errorf("failed to precompute ATA for mint %s: %w", mint.String(), err)
		}
	}
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
