// internal/faucet/builder.go
package faucet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/associatedtoken"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

// Builder собирает транзакции программы faucet для одного mint.
type Builder struct {
	client    blockchain.Client
	programID solana.PublicKey
	addrs     Addresses
	budget    computebudget.Config
	logger    *zap.Logger
}

// NewBuilder выводит PDA faucet. Нулевой mint дает ErrNoMint.
func NewBuilder(client blockchain.Client, programID, mint solana.PublicKey, budget computebudget.Config, logger *zap.Logger) (*Builder, error) {
	addrs, err := Derive(programID, mint)
	if err != nil {
		return nil, err
	}
	return &Builder{
		client:    client,
		programID: programID,
		addrs:     addrs,
		budget:    budget,
		logger:    logger.Named("faucet-builder"),
	}, nil
}

// Addresses возвращает выведенные адреса faucet.
func (b *Builder) Addresses() Addresses { return b.addrs }

// GetConfig читает faucet_config. Отсутствующий аккаунт - *perpetuals.NotFoundError.
func (b *Builder) GetConfig(ctx context.Context) (*Config, error) {
	info, err := b.client.GetAccountInfo(ctx, b.addrs.Config.Address)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (info == nil || info.Value == nil)) {
		return nil, &perpetuals.NotFoundError{Kind: "faucet config", Key: b.addrs.Mint.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get faucet config: %w", err)
	}
	return DecodeConfig(info.Value.Data.GetBinary())
}

// Initialize передает mint authority программе faucet.
func (b *Builder) Initialize(ctx context.Context, admin solana.PublicKey) (*transaction.Unsigned, error) {
	ix, err := NewInitializeInstruction(b.programID, b.addrs, admin)
	return b.finish(ctx, "faucetInitialize", transaction.NewBuilder(admin).SetComputeBudget(b.budget), ix, err)
}

// MintTo выпускает amount минимальных единиц на ATA пользователя,
// создавая ATA за счет payer, если его нет.
func (b *Builder) MintTo(ctx context.Context, payer, user solana.PublicKey, amount uint64) (*transaction.Unsigned, error) {
	if amount == 0 {
		return nil, &perpetuals.ValidationError{Field: "amount", Value: amount, Bound: "> 0"}
	}
	if user.IsZero() {
		return nil, &perpetuals.ValidationError{Field: "user", Value: user, Bound: "a non-zero address"}
	}
	tx := transaction.NewBuilder(payer).SetComputeBudget(b.budget)
	ata, ixs, err := associatedtoken.Ensure(ctx, b.client, payer, user, b.addrs.Mint, b.logger)
	if err != nil {
		return nil, fmt.Errorf("faucetMintToUser: token account: %w", err)
	}
	tx.AddInstruction(ixs...)
	ix, err := NewMintToUserInstruction(b.programID, b.addrs, ata, amount)
	return b.finish(ctx, "faucetMintToUser", tx, ix, err)
}

// TransferAuthority возвращает mint authority админу.
func (b *Builder) TransferAuthority(ctx context.Context, admin solana.PublicKey) (*transaction.Unsigned, error) {
	ix, err := NewTransferMintAuthorityInstruction(b.programID, b.addrs, admin)
	return b.finish(ctx, "faucetTransferMintAuthority", transaction.NewBuilder(admin).SetComputeBudget(b.budget), ix, err)
}

func (b *Builder) finish(ctx context.Context, op string, tx *transaction.Builder, ix solana.Instruction, err error) (*transaction.Unsigned, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	unsigned, err := tx.AddInstruction(ix).Build(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b.logger.Debug("Faucet transaction built",
		zap.String("operation", op),
		zap.Stringer("mint", b.addrs.Mint),
		zap.Int("instructions", len(unsigned.Tx.Message.Instructions)))
	return unsigned, nil
}
