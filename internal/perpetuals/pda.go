// internal/perpetuals/pda.go
package perpetuals

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed - один элемент seeds при выводе PDA: строка, сырые байты или адрес.
type Seed []byte

// SeedString кодирует строку как UTF-8.
func SeedString(s string) Seed { return Seed(s) }

// SeedBytes использует байты как есть.
func SeedBytes(b []byte) Seed { return Seed(b) }

// SeedAddress использует 32 байта адреса.
func SeedAddress(pk solana.PublicKey) Seed { return Seed(pk.Bytes()) }

// DerivedAddress - результат вывода PDA.
type DerivedAddress struct {
	Address solana.PublicKey
	Bump    uint8
}

// Resolver выводит адреса аккаунтов программы. Состояния не хранит:
// одинаковый вход всегда дает одинаковый результат.
type Resolver struct {
	programID solana.PublicKey
}

// NewResolver создает резолвер для программы programID.
func NewResolver(programID solana.PublicKey) *Resolver {
	return &Resolver{programID: programID}
}

// ProgramID возвращает адрес программы.
func (r *Resolver) ProgramID() solana.PublicKey {
	return r.programID
}

// Derive выводит PDA из метки и последовательности seeds.
// Бамп ищется от 255 вниз, как в самой программе.
func (r *Resolver) Derive(label string, seeds ...Seed) (DerivedAddress, error) {
	raw := make([][]byte, 0, len(seeds)+1)
	raw = append(raw, []byte(label))
	for _, s := range seeds {
		raw = append(raw, s)
	}
	addr, bump, err := solana.FindProgramAddress(raw, r.programID)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("derive %s address: %w", label, err)
	}
	return DerivedAddress{Address: addr, Bump: bump}, nil
}

func (r *Resolver) mustDerive(label string, seeds ...Seed) solana.PublicKey {
	d, err := r.Derive(label, seeds...)
	if err != nil {
		// seeds здесь - метка и адреса по 32 байта, ошибка возможна
		// только если не найден ни один бамп
		panic(err)
	}
	return d.Address
}

// Perpetuals - глобальный аккаунт программы.
func (r *Resolver) Perpetuals() solana.PublicKey {
	return r.mustDerive(LabelPerpetuals)
}

func (r *Resolver) Multisig() solana.PublicKey {
	return r.mustDerive(LabelMultisig)
}

func (r *Resolver) TransferAuthority() solana.PublicKey {
	return r.mustDerive(LabelTransferAuthority)
}

// Pool выводит адрес пула по имени. Имя проверяется ValidatePoolName:
// seed длиннее solana.MaxSeedLength байт не выводится.
func (r *Resolver) Pool(name string) (solana.PublicKey, error) {
	if err := ValidatePoolName(name); err != nil {
		return solana.PublicKey{}, err
	}
	d, err := r.Derive(LabelPool, SeedString(name))
	if err != nil {
		return solana.PublicKey{}, err
	}
	return d.Address, nil
}

func (r *Resolver) LPTokenMint(pool solana.PublicKey) solana.PublicKey {
	return r.mustDerive(LabelLPTokenMint, SeedAddress(pool))
}

// Custody выводит адрес кастоди по пулу и mint.
func (r *Resolver) Custody(pool, mint solana.PublicKey) solana.PublicKey {
	return r.mustDerive(LabelCustody, SeedAddress(pool), SeedAddress(mint))
}

func (r *Resolver) CustodyTokenAccount(pool, mint solana.PublicKey) solana.PublicKey {
	return r.mustDerive(LabelCustodyTokenAccount, SeedAddress(pool), SeedAddress(mint))
}

// CustomOracle - аккаунт кастомного оракула кастоди.
func (r *Resolver) CustomOracle(pool, mint solana.PublicKey) solana.PublicKey {
	return r.mustDerive(LabelOracleAccount, SeedAddress(pool), SeedAddress(mint))
}

// Position выводит адрес позиции. Для SideNone возвращает ErrInvalidSide.
func (r *Resolver) Position(owner, pool, custody solana.PublicKey, side Side) (solana.PublicKey, error) {
	sideByte, err := side.SeedByte()
	if err != nil {
		return solana.PublicKey{}, err
	}
	d, err := r.Derive(LabelPosition,
		SeedAddress(owner),
		SeedAddress(pool),
		SeedAddress(custody),
		SeedBytes([]byte{sideByte}),
	)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return d.Address, nil
}

// ProgramData - аккаунт данных upgradeable-программы, нужен для init.
func (r *Resolver) ProgramData() solana.PublicKey {
	addr, _, err := solana.FindProgramAddress([][]byte{r.programID.Bytes()}, BPFLoaderUpgradeableID)
	if err != nil {
		panic(fmt.Errorf("derive program data address: %w", err))
	}
	return addr
}
