// internal/blockchain/solana/programs/associatedtoken/associatedtoken.go
package associatedtoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// createIdempotent - код инструкции CreateIdempotent программы ATA.
const createIdempotent byte = 1

// AccountInfoGetter - минимальный RPC-интерфейс для проверки существования аккаунта.
type AccountInfoGetter interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Address возвращает адрес ATA владельца для mint.
func Address(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find ATA: %w", err)
	}
	return ata, nil
}

// NewCreateIdempotentInstruction создает ATA, если его еще нет; повторный вызов не падает.
func NewCreateIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := Address(owner, mint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: owner, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SysVarRentPubkey, IsWritable: false, IsSigner: false},
		},
		[]byte{createIdempotent},
	), nil
}

// Ensure находит ATA и, если аккаунта нет в сети, возвращает инструкцию его создания.
// Для существующего аккаунта список инструкций пуст.
func Ensure(
	ctx context.Context,
	client AccountInfoGetter,
	payer, owner, mint solana.PublicKey,
	logger *zap.Logger,
) (solana.PublicKey, []solana.Instruction, error) {
	ata, err := Address(owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	account, err := client.GetAccountInfo(ctx, ata)
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		return solana.PublicKey{}, nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if err == nil && account != nil && account.Value != nil {
		return ata, nil, nil
	}

	ix, err := NewCreateIdempotentInstruction(payer, owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	logger.Debug("ATA creation instruction added",
		zap.String("ata", ata.String()),
		zap.String("owner", owner.String()),
		zap.String("mint", mint.String()))
	return ata, []solana.Instruction{ix}, nil
}
