// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// Failed сообщает, отклонила ли программа симулированную транзакцию.
func (r *SimulationResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Client определяет набор RPC-операций, которые нужны клиенту протокола.
// Каждая операция чтения проходит через failover по списку эндпоинтов.
type Client interface {
	// Получить последний blockhash.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Получить информацию об аккаунте. Возвращает rpc.ErrNotFound, если аккаунта нет.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	// Получить несколько аккаунтов одним запросом.
	GetMultipleAccounts(ctx context.Context, pubkeys ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
	// Получить аккаунты программы с фильтрами.
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	// Минимальный баланс для rent-exempt аккаунта заданного размера.
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	// Получить статусы подписей транзакций.
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	// Симулировать транзакцию без подписей.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Отправить подписанную транзакцию. Не повторяется на других эндпоинтах.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Ожидание подтверждения транзакции.
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error
}
