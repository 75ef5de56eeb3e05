// internal/blockchain/solana/programs/computebudget/computebudget.go
package computebudget

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID - адрес нативной программы compute budget.
var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Дискриминаторы инструкций программы (один байт).
const (
	RequestHeapFrame    uint8 = 1
	SetComputeUnitLimit uint8 = 2
	SetComputeUnitPrice uint8 = 3
)

// DefaultUnits - лимит для инструкций perpetuals: расчеты цен и комиссий тяжелые.
const DefaultUnits uint32 = 1_000_000

// Config - бюджет транзакции. UnitPrice в micro-lamports за compute unit.
type Config struct {
	Units     uint32
	UnitPrice uint64
}

// NewDefaultConfig возвращает бюджет с DefaultUnits и без приоритетной цены.
func NewDefaultConfig() Config {
	return Config{Units: DefaultUnits}
}

// BuildInstructions возвращает лимит и, если UnitPrice задан, цену.
// Нулевой Units заменяется на DefaultUnits.
func BuildInstructions(config Config) ([]solana.Instruction, error) {
	if config.Units == 0 {
		config.Units = DefaultUnits
	}
	limit, err := newInstruction(SetComputeUnitLimit, func(enc *bin.Encoder) error {
		return enc.WriteUint32(config.Units, bin.LE)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit limit instruction: %w", err)
	}
	if config.UnitPrice == 0 {
		return []solana.Instruction{limit}, nil
	}
	price, err := newInstruction(SetComputeUnitPrice, func(enc *bin.Encoder) error {
		return enc.WriteUint64(config.UnitPrice, bin.LE)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit price instruction: %w", err)
	}
	return []solana.Instruction{limit, price}, nil
}

// IsComputeBudget проверяет, относится ли инструкция к программе compute budget.
func IsComputeBudget(ix solana.Instruction) bool {
	return ix.ProgramID().Equals(ProgramID)
}

func newInstruction(discriminator uint8, writeArg func(enc *bin.Encoder) error) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint8(discriminator); err != nil {
		return nil, err
	}
	if err := writeArg(enc); err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, buf.Bytes()), nil
}
