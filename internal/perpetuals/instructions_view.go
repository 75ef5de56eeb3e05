// internal/perpetuals/instructions_view.go
package perpetuals

import (
	"github.com/gagliardetto/solana-go"
)

// View-инструкции ничего не меняют и вызываются только через симуляцию.
var (
	getOraclePriceDiscriminator                 = []byte{200, 20, 0, 106, 56, 210, 230, 140}
	getEntryPriceAndFeeDiscriminator            = []byte{134, 30, 231, 199, 83, 72, 27, 99}
	getExitPriceAndFeeDiscriminator             = []byte{73, 77, 94, 31, 8, 9, 92, 32}
	getLiquidationPriceDiscriminator            = []byte{73, 174, 119, 65, 149, 5, 73, 239}
	getLiquidationStateDiscriminator            = []byte{127, 126, 199, 117, 90, 89, 29, 50}
	getPnlDiscriminator                         = []byte{106, 212, 3, 250, 195, 224, 64, 160}
	getAddLiquidityAmountAndFeeDiscriminator    = []byte{172, 150, 249, 181, 233, 241, 78, 139}
	getRemoveLiquidityAmountAndFeeDiscriminator = []byte{194, 226, 233, 102, 14, 21, 196, 7}
	getSwapAmountAndFeesDiscriminator           = []byte{247, 121, 40, 99, 35, 82, 100, 32}
	getAssetsUnderManagementDiscriminator       = []byte{44, 3, 161, 69, 174, 75, 137, 162}
	getLpTokenPriceDiscriminator                = []byte{71, 172, 21, 25, 176, 168, 60, 10}
)

type GetOraclePriceParams struct {
	Ema bool
}

type GetEntryPriceAndFeeParams struct {
	Collateral uint64
	Size       uint64
	Side       Side
}

type GetLiquidationPriceParams struct {
	AddCollateral    uint64
	RemoveCollateral uint64
}

type GetAmountParams struct {
	Amount uint64
}

// ViewPositionAccounts - аккаунты view-инструкций по существующей позиции.
type ViewPositionAccounts struct {
	Perpetuals        solana.PublicKey
	Pool              solana.PublicKey
	Position          solana.PublicKey
	Custody           CustodyOracle
	CollateralCustody CustodyOracle
}

func (a ViewPositionAccounts) metas() []*solana.AccountMeta {
	metas := []*solana.AccountMeta{
		readonly(a.Perpetuals),
		readonly(a.Pool),
		readonly(a.Position),
	}
	metas = append(metas, a.Custody.metas(false)...)
	return append(metas, a.CollateralCustody.metas(false)...)
}

func NewGetOraclePriceInstruction(programID, perpetuals, pool solana.PublicKey, custody CustodyOracle, params GetOraclePriceParams) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool)}
	metas = append(metas, custody.metas(false)...)
	return newInstruction(programID, getOraclePriceDiscriminator, params, metas)
}

func NewGetEntryPriceAndFeeInstruction(programID, perpetuals, pool solana.PublicKey, custody, collateral CustodyOracle, params GetEntryPriceAndFeeParams) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool)}
	metas = append(metas, custody.metas(false)...)
	metas = append(metas, collateral.metas(false)...)
	return newInstruction(programID, getEntryPriceAndFeeDiscriminator, params, metas)
}

func NewGetExitPriceAndFeeInstruction(programID solana.PublicKey, accounts ViewPositionAccounts, custodyMetas []*solana.AccountMeta) (solana.Instruction, error) {
	return newInstruction(programID, getExitPriceAndFeeDiscriminator, emptyParams{}, append(accounts.metas(), custodyMetas...))
}

func NewGetLiquidationPriceInstruction(programID solana.PublicKey, accounts ViewPositionAccounts, params GetLiquidationPriceParams) (solana.Instruction, error) {
	return newInstruction(programID, getLiquidationPriceDiscriminator, params, accounts.metas())
}

func NewGetLiquidationStateInstruction(programID solana.PublicKey, accounts ViewPositionAccounts) (solana.Instruction, error) {
	return newInstruction(programID, getLiquidationStateDiscriminator, emptyParams{}, accounts.metas())
}

func NewGetPnlInstruction(programID solana.PublicKey, accounts ViewPositionAccounts) (solana.Instruction, error) {
	return newInstruction(programID, getPnlDiscriminator, emptyParams{}, accounts.metas())
}

func liquidityViewMetas(perpetuals, pool solana.PublicKey, custody CustodyOracle, lpTokenMint solana.PublicKey, custodyMetas []*solana.AccountMeta) []*solana.AccountMeta {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool)}
	metas = append(metas, custody.metas(false)...)
	metas = append(metas, readonly(lpTokenMint))
	return append(metas, custodyMetas...)
}

func NewGetAddLiquidityAmountAndFeeInstruction(programID, perpetuals, pool solana.PublicKey, custody CustodyOracle, lpTokenMint solana.PublicKey, custodyMetas []*solana.AccountMeta, amountIn uint64) (solana.Instruction, error) {
	return newInstruction(programID, getAddLiquidityAmountAndFeeDiscriminator, GetAmountParams{Amount: amountIn},
		liquidityViewMetas(perpetuals, pool, custody, lpTokenMint, custodyMetas))
}

func NewGetRemoveLiquidityAmountAndFeeInstruction(programID, perpetuals, pool solana.PublicKey, custody CustodyOracle, lpTokenMint solana.PublicKey, custodyMetas []*solana.AccountMeta, lpAmountIn uint64) (solana.Instruction, error) {
	return newInstruction(programID, getRemoveLiquidityAmountAndFeeDiscriminator, GetAmountParams{Amount: lpAmountIn},
		liquidityViewMetas(perpetuals, pool, custody, lpTokenMint, custodyMetas))
}

func NewGetSwapAmountAndFeesInstruction(programID, perpetuals, pool solana.PublicKey, receiving, dispensing CustodyOracle, amountIn uint64) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool)}
	metas = append(metas, receiving.metas(false)...)
	metas = append(metas, dispensing.metas(false)...)
	return newInstruction(programID, getSwapAmountAndFeesDiscriminator, GetAmountParams{Amount: amountIn}, metas)
}

func NewGetAssetsUnderManagementInstruction(programID, perpetuals, pool solana.PublicKey, custodyMetas []*solana.AccountMeta) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool)}
	return newInstruction(programID, getAssetsUnderManagementDiscriminator, emptyParams{}, append(metas, custodyMetas...))
}

func NewGetLpTokenPriceInstruction(programID, perpetuals, pool, lpTokenMint solana.PublicKey, custodyMetas []*solana.AccountMeta) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{readonly(perpetuals), readonly(pool), readonly(lpTokenMint)}
	return newInstruction(programID, getLpTokenPriceDiscriminator, emptyParams{}, append(metas, custodyMetas...))
}
