// internal/faucet/instructions.go
package faucet

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type mintToUserArgs struct {
	Amount uint64
}

func newInstruction(programID solana.PublicKey, discriminator []byte, args interface{}, metas solana.AccountMetaSlice) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator)
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode faucet args: %w", err)
		}
	}
	return solana.NewInstruction(programID, metas, buf.Bytes()), nil
}

// NewInitializeInstruction создает faucet_config и передает mint authority программе.
// Подписывает текущий владелец mint authority.
func NewInitializeInstruction(programID solana.PublicKey, addrs Addresses, admin solana.PublicKey) (solana.Instruction, error) {
	return newInstruction(programID, initializeDiscriminator, nil, solana.AccountMetaSlice{
		solana.Meta(addrs.Config.Address).WRITE(),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(addrs.Mint).WRITE(),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	})
}

// NewMintToUserInstruction выпускает amount минимальных единиц на токен-аккаунт пользователя.
// Подпись админа не нужна: выпуск подписывает PDA программы.
func NewMintToUserInstruction(programID solana.PublicKey, addrs Addresses, userTokenAccount solana.PublicKey, amount uint64) (solana.Instruction, error) {
	return newInstruction(programID, mintToUserDiscriminator, mintToUserArgs{Amount: amount}, solana.AccountMetaSlice{
		solana.Meta(addrs.Config.Address),
		solana.Meta(addrs.Mint).WRITE(),
		solana.Meta(userTokenAccount).WRITE(),
		solana.Meta(addrs.MintAuthority.Address),
		solana.Meta(solana.TokenProgramID),
	})
}

// NewTransferMintAuthorityInstruction возвращает mint authority админу из faucet_config.
func NewTransferMintAuthorityInstruction(programID solana.PublicKey, addrs Addresses, admin solana.PublicKey) (solana.Instruction, error) {
	return newInstruction(programID, transferMintAuthorityDiscriminator, nil, solana.AccountMetaSlice{
		solana.Meta(addrs.Config.Address),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(addrs.Mint).WRITE(),
		solana.Meta(addrs.MintAuthority.Address),
		solana.Meta(solana.TokenProgramID),
	})
}
