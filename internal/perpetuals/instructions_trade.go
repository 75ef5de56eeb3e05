// =============================
// File: internal/perpetuals/instructions_trade.go
// =============================
package perpetuals

import (
	"github.com/gagliardetto/solana-go"
)

var (
	addLiquidityDiscriminator     = []byte{181, 157, 89, 67, 143, 182, 52, 72}
	removeLiquidityDiscriminator  = []byte{80, 85, 209, 72, 24, 206, 177, 108}
	swapDiscriminator             = []byte{248, 198, 158, 145, 225, 117, 135, 200}
	openPositionDiscriminator     = []byte{135, 128, 47, 77, 15, 152, 240, 49}
	addCollateralDiscriminator    = []byte{127, 82, 121, 42, 161, 176, 249, 206}
	removeCollateralDiscriminator = []byte{86, 222, 130, 86, 92, 20, 72, 65}
	closePositionDiscriminator    = []byte{123, 134, 81, 0, 49, 68, 98, 98}
	liquidateDiscriminator        = []byte{223, 179, 226, 125, 48, 46, 39, 74}
)

type AddLiquidityParams struct {
	AmountIn       uint64
	MinLpAmountOut uint64
}

type RemoveLiquidityParams struct {
	LpAmountIn   uint64
	MinAmountOut uint64
}

type SwapParams struct {
	AmountIn     uint64
	MinAmountOut uint64
}

// OpenPositionParams - Price задает предельную цену входа (с учетом проскальзывания).
type OpenPositionParams struct {
	Price           uint64
	Collateral      uint64
	Size            uint64
	Side            Side
	TakeProfitPrice *uint64 `bin:"optional"`
	StopLossPrice   *uint64 `bin:"optional"`
}

type AddCollateralParams struct {
	Collateral uint64
}

type RemoveCollateralParams struct {
	CollateralUsd uint64
}

type ClosePositionParams struct {
	Price uint64
}

// CustodyOracle - кастоди и ее ценовые аккаунты (spot и twap).
type CustodyOracle struct {
	Custody solana.PublicKey
	Oracle  solana.PublicKey
	Twap    solana.PublicKey
}

func (c CustodyOracle) metas(writableCustody bool) []*solana.AccountMeta {
	custody := readonly(c.Custody)
	if writableCustody {
		custody = writable(c.Custody)
	}
	return []*solana.AccountMeta{custody, readonly(c.Oracle), readonly(c.Twap)}
}

// LiquidityAccounts - аккаунты addLiquidity/removeLiquidity.
type LiquidityAccounts struct {
	Owner               solana.PublicKey
	TokenAccount        solana.PublicKey // funding для add, receiving для remove
	LPTokenAccount      solana.PublicKey
	TransferAuthority   solana.PublicKey
	Perpetuals          solana.PublicKey
	Pool                solana.PublicKey
	Custody             CustodyOracle
	CustodyTokenAccount solana.PublicKey
	LPTokenMint         solana.PublicKey
	// Все кастоди пула и их оракулы, нужны программе для расчета AUM.
	Remaining []*solana.AccountMeta
}

func (a LiquidityAccounts) metas() []*solana.AccountMeta {
	metas := []*solana.AccountMeta{
		payer(a.Owner),
		writable(a.TokenAccount),
		writable(a.LPTokenAccount),
		readonly(a.TransferAuthority),
		readonly(a.Perpetuals),
		writable(a.Pool),
	}
	metas = append(metas, a.Custody.metas(true)...)
	metas = append(metas,
		writable(a.CustodyTokenAccount),
		writable(a.LPTokenMint),
		readonly(TokenProgramID),
	)
	return append(metas, a.Remaining...)
}

func NewAddLiquidityInstruction(programID solana.PublicKey, accounts LiquidityAccounts, params AddLiquidityParams) (solana.Instruction, error) {
	return newInstruction(programID, addLiquidityDiscriminator, params, accounts.metas())
}

func NewRemoveLiquidityInstruction(programID solana.PublicKey, accounts LiquidityAccounts, params RemoveLiquidityParams) (solana.Instruction, error) {
	return newInstruction(programID, removeLiquidityDiscriminator, params, accounts.metas())
}

// SwapAccounts - receiving кастоди принимает токены пользователя, dispensing отдает.
type SwapAccounts struct {
	Owner                         solana.PublicKey
	FundingAccount                solana.PublicKey
	ReceivingAccount              solana.PublicKey
	TransferAuthority             solana.PublicKey
	Perpetuals                    solana.PublicKey
	Pool                          solana.PublicKey
	ReceivingCustody              CustodyOracle
	ReceivingCustodyTokenAccount  solana.PublicKey
	DispensingCustody             CustodyOracle
	DispensingCustodyTokenAccount solana.PublicKey
}

func NewSwapInstruction(programID solana.PublicKey, accounts SwapAccounts, params SwapParams) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{
		signer(accounts.Owner),
		writable(accounts.FundingAccount),
		writable(accounts.ReceivingAccount),
		readonly(accounts.TransferAuthority),
		readonly(accounts.Perpetuals),
		writable(accounts.Pool),
	}
	metas = append(metas, accounts.ReceivingCustody.metas(true)...)
	metas = append(metas, writable(accounts.ReceivingCustodyTokenAccount))
	metas = append(metas, accounts.DispensingCustody.metas(true)...)
	metas = append(metas,
		writable(accounts.DispensingCustodyTokenAccount),
		readonly(TokenProgramID),
	)
	return newInstruction(programID, swapDiscriminator, params, metas)
}

// PositionAccounts - общий набор аккаунтов позиционных инструкций.
type PositionAccounts struct {
	Owner                  solana.PublicKey
	TokenAccount           solana.PublicKey // funding для open/addCollateral, receiving для остальных
	TransferAuthority      solana.PublicKey
	Perpetuals             solana.PublicKey
	Pool                   solana.PublicKey
	Position               solana.PublicKey
	Custody                CustodyOracle
	CollateralCustody      CustodyOracle
	CollateralTokenAccount solana.PublicKey
}

func (a PositionAccounts) metas(withSystemProgram bool) []*solana.AccountMeta {
	metas := []*solana.AccountMeta{
		payer(a.Owner),
		writable(a.TokenAccount),
		readonly(a.TransferAuthority),
		readonly(a.Perpetuals),
		writable(a.Pool),
		writable(a.Position),
	}
	metas = append(metas, a.Custody.metas(true)...)
	metas = append(metas, a.CollateralCustody.metas(true)...)
	metas = append(metas, writable(a.CollateralTokenAccount))
	if withSystemProgram {
		metas = append(metas, readonly(SystemProgramID))
	}
	return append(metas, readonly(TokenProgramID))
}

func NewOpenPositionInstruction(programID solana.PublicKey, accounts PositionAccounts, params OpenPositionParams) (solana.Instruction, error) {
	return newInstruction(programID, openPositionDiscriminator, params, accounts.metas(true))
}

func NewAddCollateralInstruction(programID solana.PublicKey, accounts PositionAccounts, params AddCollateralParams) (solana.Instruction, error) {
	return newInstruction(programID, addCollateralDiscriminator, params, accounts.metas(false))
}

func NewRemoveCollateralInstruction(programID solana.PublicKey, accounts PositionAccounts, params RemoveCollateralParams) (solana.Instruction, error) {
	return newInstruction(programID, removeCollateralDiscriminator, params, accounts.metas(false))
}

func NewClosePositionInstruction(programID solana.PublicKey, accounts PositionAccounts, params ClosePositionParams) (solana.Instruction, error) {
	return newInstruction(programID, closePositionDiscriminator, params, accounts.metas(false))
}

// LiquidateAccounts - Signer получает вознаграждение на RewardsReceivingAccount,
// остаток залога уходит владельцу на ReceivingAccount.
type LiquidateAccounts struct {
	PositionAccounts
	RewardsReceivingAccount solana.PublicKey
}

func NewLiquidateInstruction(programID solana.PublicKey, accounts LiquidateAccounts) (solana.Instruction, error) {
	base := accounts.metas(false)
	metas := make([]*solana.AccountMeta, 0, len(base)+1)
	metas = append(metas, base[:2]...)
	metas = append(metas, writable(accounts.RewardsReceivingAccount))
	metas = append(metas, base[2:]...)
	return newInstruction(programID, liquidateDiscriminator, emptyParams{}, metas)
}
