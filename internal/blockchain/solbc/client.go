// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	gateway "github.com/rovshanmuradov/perps-client/internal/blockchain/solbc/rpc"
)

// Определение ошибок
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
)

const (
	defaultConfirmTimeout   = 60 * time.Second
	defaultConfirmInitDelay = 400 * time.Millisecond
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) || errors.Is(err, ErrAccountNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Client - тонкий адаптер над failover-gateway, реализующий blockchain.Client.
type Client struct {
	rpc            *gateway.Gateway
	logger         *zap.Logger
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	analyzer       *ErrorAnalyzer
}

// NewClient создаёт новый клиент, принимая gateway и логгер через dependency injection.
func NewClient(gw *gateway.Gateway, logger *zap.Logger) *Client {
	return &Client{
		rpc:            gw,
		logger:         logger.Named("solbc-client"),
		commitment:     rpc.CommitmentConfirmed,
		confirmTimeout: defaultConfirmTimeout,
		analyzer:       NewErrorAnalyzer(logger),
	}
}

// SetConfirmTimeout задает максимальное время ожидания подтверждения.
func (c *Client) SetConfirmTimeout(d time.Duration) {
	if d > 0 {
		c.confirmTimeout = d
	}
}

// GetLatestBlockhash получает последний blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetAccountInfo получает информацию об аккаунте.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах за один запрос
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	if len(pubkeys) == 0 {
		return &rpc.GetMultipleAccountsResult{}, nil
	}

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error",
			zap.Int("count", len(pubkeys)),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// GetProgramAccounts получает все аккаунты программы с опциями фильтрации
func (c *Client) GetProgramAccounts(
	ctx context.Context,
	programID solana.PublicKey,
	opts *rpc.GetProgramAccountsOpts,
) (rpc.GetProgramAccountsResult, error) {
	if opts == nil {
		opts = &rpc.GetProgramAccountsOpts{}
	}
	if opts.Encoding == "" {
		opts.Encoding = solana.EncodingBase64
	}
	if opts.Commitment == "" {
		opts.Commitment = c.commitment
	}

	accounts, err := c.rpc.GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		c.logger.Debug("GetProgramAccounts error",
			zap.String("program_id", programID.String()),
			zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

// GetMinimumBalanceForRentExemption возвращает rent-exempt минимум для размера данных.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, dataSize, c.commitment)
	if err != nil {
		c.logger.Error("GetMinimumBalanceForRentExemption error", zap.Uint64("size", dataSize), zap.Error(err))
		return 0, err
	}
	return lamports, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, c.commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, false, signatures...)
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// SimulateTransaction симулирует транзакцию без проверки подписей.
// Ошибка программы возвращается в SimulationResult.Err, а не как error.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	tx = withPlaceholderSignatures(tx)
	result, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             rpc.CommitmentProcessed,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("empty simulation response")
	}

	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// withPlaceholderSignatures дополняет неподписанную транзакцию нулевыми подписями.
// Узел не проверяет их при sigVerify=false, а сериализация требует полный набор.
func withPlaceholderSignatures(tx *solana.Transaction) *solana.Transaction {
	missing := int(tx.Message.Header.NumRequiredSignatures) - len(tx.Signatures)
	if missing <= 0 {
		return tx
	}
	padded := *tx
	padded.Signatures = make([]solana.Signature, 0, len(tx.Signatures)+missing)
	padded.Signatures = append(padded.Signatures, tx.Signatures...)
	padded.Signatures = append(padded.Signatures, make([]solana.Signature, missing)...)
	return &padded
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		// отказ на preflight возвращаем как ошибку программы с логами
		if pe := c.analyzer.AsProgramError(err); pe != nil {
			return solana.Signature{}, pe
		}
		return solana.Signature{}, err
	}
	return sig, nil
}

// WaitForTransactionConfirmation ожидает подтверждения транзакции с экспоненциальным опросом.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultConfirmInitDelay
	b.MaxInterval = 4 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		statuses, err := c.GetSignatureStatuses(ctx, signature)
		if err != nil {
			return struct{}{}, err
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			return struct{}{}, fmt.Errorf("signature %s not yet visible", signature)
		}

		status := statuses.Value[0]
		if status.Err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err))
		}
		if reached(status.ConfirmationStatus, commitment) {
			return struct{}{}, nil
		}
		return struct{}{}, fmt.Errorf("signature %s at %s", signature, status.ConfirmationStatus)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.confirmTimeout),
	)
	if err != nil {
		if errors.Is(err, ErrTransactionFailed) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConfirmationTimeout, err)
	}
	return nil
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
