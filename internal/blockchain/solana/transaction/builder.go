// internal/blockchain/solana/transaction/builder.go
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
)

// BlockhashSource определяет источник recent blockhash
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// ErrNoInstructions возвращается при попытке собрать пустую транзакцию
var ErrNoInstructions = errors.New("transaction has no instructions")

// Unsigned - собранная, но не подписанная транзакция и ключи,
// которые должны подписать ее помимо плательщика.
type Unsigned struct {
	Tx           *solana.Transaction
	ExtraSigners []solana.PrivateKey
}

// Builder помогает конструировать транзакции
type Builder struct {
	payer        solana.PublicKey
	instructions []solana.Instruction
	signers      []solana.PrivateKey
	config       computebudget.Config
}

// NewBuilder создает новый билдер транзакций для плательщика payer
func NewBuilder(payer solana.PublicKey) *Builder {
	return &Builder{
		payer:  payer,
		config: computebudget.NewDefaultConfig(),
	}
}

// SetComputeBudget устанавливает параметры compute budget
func (b *Builder) SetComputeBudget(config computebudget.Config) *Builder {
	b.config = config
	return b
}

// AddInstruction добавляет инструкцию в транзакцию
func (b *Builder) AddInstruction(instructions ...solana.Instruction) *Builder {
	b.instructions = append(b.instructions, instructions...)
	return b
}

// AddSigner добавляет дополнительного подписанта (например, новый mint)
func (b *Builder) AddSigner(signer solana.PrivateKey) *Builder {
	b.signers = append(b.signers, signer)
	return b
}

// Instructions возвращает итоговый порядок инструкций: compute budget, затем добавленные.
func (b *Builder) Instructions() ([]solana.Instruction, error) {
	if len(b.instructions) == 0 {
		return nil, ErrNoInstructions
	}

	budgetInstructions, err := computebudget.BuildInstructions(b.config)
	if err != nil {
		return nil, fmt.Errorf("failed to build compute budget instructions: %w", err)
	}

	instructions := make([]solana.Instruction, 0, len(budgetInstructions)+len(b.instructions))
	instructions = append(instructions, budgetInstructions...)
	instructions = append(instructions, b.instructions...)
	return instructions, nil
}

// Build создает неподписанную транзакцию со свежим blockhash
func (b *Builder) Build(ctx context.Context, client BlockhashSource) (*Unsigned, error) {
	if b.payer.IsZero() {
		return nil, fmt.Errorf("no fee payer provided")
	}

	instructions, err := b.Instructions()
	if err != nil {
		return nil, err
	}

	blockhash, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(b.payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	signers := make([]solana.PrivateKey, len(b.signers))
	copy(signers, b.signers)
	return &Unsigned{Tx: tx, ExtraSigners: signers}, nil
}
