// =============================
// File: internal/perpetuals/instructions.go
// =============================
package perpetuals

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators extracted from the IDL
var (
	initDiscriminator                 = []byte{220, 59, 207, 236, 108, 250, 47, 100}
	setAdminSignersDiscriminator      = []byte{240, 171, 141, 105, 124, 2, 225, 188}
	setPermissionsDiscriminator       = []byte{214, 165, 105, 182, 213, 162, 212, 34}
	setTestTimeDiscriminator          = []byte{242, 231, 177, 251, 126, 145, 159, 104}
	addPoolDiscriminator              = []byte{115, 230, 212, 211, 175, 49, 39, 169}
	removePoolDiscriminator           = []byte{132, 42, 53, 138, 28, 220, 170, 55}
	addCustodyInitDiscriminator       = []byte{147, 67, 217, 189, 19, 190, 190, 24}
	addCustodyDiscriminator           = []byte{247, 254, 126, 17, 26, 6, 215, 117}
	removeCustodyDiscriminator        = []byte{143, 229, 131, 48, 248, 212, 167, 185}
	upgradeCustodyDiscriminator       = []byte{23, 101, 146, 207, 189, 225, 229, 68}
	setCustodyConfigDiscriminator     = []byte{133, 97, 130, 143, 215, 229, 36, 176}
	setCustomOraclePriceDiscriminator = []byte{180, 194, 182, 63, 48, 125, 116, 136}
	withdrawFeesDiscriminator         = []byte{198, 212, 171, 109, 144, 215, 174, 89}
	withdrawSolFeesDiscriminator      = []byte{191, 53, 166, 97, 124, 212, 228, 219}
	updatePoolAumDiscriminator        = []byte{10, 125, 230, 234, 157, 184, 236, 241}
)

// encodeData собирает данные инструкции: дискриминатор и borsh-аргументы.
func encodeData(discriminator []byte, params interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator)
	if params == nil {
		return buf.Bytes(), nil
	}
	if err := bin.NewBorshEncoder(buf).Encode(params); err != nil {
		return nil, fmt.Errorf("encode instruction params: %w", err)
	}
	return buf.Bytes(), nil
}

func newInstruction(programID solana.PublicKey, discriminator []byte, params interface{}, metas []*solana.AccountMeta) (solana.Instruction, error) {
	data, err := encodeData(discriminator, params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, metas, data), nil
}

func readonly(pk solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(pk, false, false) }
func writable(pk solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(pk, true, false) }
func signer(pk solana.PublicKey) *solana.AccountMeta   { return solana.NewAccountMeta(pk, false, true) }
func payer(pk solana.PublicKey) *solana.AccountMeta    { return solana.NewAccountMeta(pk, true, true) }

// ---- админские параметры ----

type InitParams struct {
	MinSignatures uint8
	Permissions   Permissions
}

type SetAdminSignersParams struct {
	MinSignatures uint8
}

type SetTestTimeParams struct {
	Time int64
}

type AddPoolParams struct {
	Name string
}

type RemoveCustodyParams struct {
	Ratios []TokenRatios
}

type SetCustomOraclePriceParams struct {
	Price       uint64
	Expo        int32
	Conf        uint64
	Ema         uint64
	PublishTime int64
}

type WithdrawFeesParams struct {
	Amount uint64
}

type emptyParams struct{}

// AdminAccounts - общие аккаунты админских инструкций.
type AdminAccounts struct {
	Admin    solana.PublicKey
	Multisig solana.PublicKey
}

// InitAccounts - аккаунты инструкции init.
type InitAccounts struct {
	UpgradeAuthority  solana.PublicKey
	Multisig          solana.PublicKey
	TransferAuthority solana.PublicKey
	Perpetuals        solana.PublicKey
	ProgramData       solana.PublicKey
	Program           solana.PublicKey
	Admins            []solana.PublicKey
}

// NewInitInstruction создает инструкцию инициализации программы.
// Админы передаются как remaining accounts.
func NewInitInstruction(programID solana.PublicKey, accounts InitAccounts, params InitParams) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{
		payer(accounts.UpgradeAuthority),
		writable(accounts.Multisig),
		writable(accounts.TransferAuthority),
		writable(accounts.Perpetuals),
		readonly(accounts.ProgramData),
		readonly(accounts.Program),
		readonly(SystemProgramID),
		readonly(TokenProgramID),
	}
	metas = append(metas, adminMetas(accounts.Admins)...)
	return newInstruction(programID, initDiscriminator, params, metas)
}

func adminMetas(admins []solana.PublicKey) []*solana.AccountMeta {
	metas := make([]*solana.AccountMeta, 0, len(admins))
	for _, a := range admins {
		metas = append(metas, readonly(a))
	}
	return metas
}

func NewSetAdminSignersInstruction(programID solana.PublicKey, accounts AdminAccounts, admins []solana.PublicKey, params SetAdminSignersParams) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
	}
	metas = append(metas, adminMetas(admins)...)
	return newInstruction(programID, setAdminSignersDiscriminator, params, metas)
}

func NewSetPermissionsInstruction(programID solana.PublicKey, accounts AdminAccounts, perpetuals solana.PublicKey, params Permissions) (solana.Instruction, error) {
	return newInstruction(programID, setPermissionsDiscriminator, params, []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
		writable(perpetuals),
	})
}

func NewSetTestTimeInstruction(programID solana.PublicKey, accounts AdminAccounts, perpetuals solana.PublicKey, params SetTestTimeParams) (solana.Instruction, error) {
	return newInstruction(programID, setTestTimeDiscriminator, params, []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
		writable(perpetuals),
	})
}

// PoolAccounts - аккаунты addPool/removePool.
type PoolAccounts struct {
	AdminAccounts
	TransferAuthority solana.PublicKey
	Perpetuals        solana.PublicKey
	Pool              solana.PublicKey
	LPTokenMint       solana.PublicKey
}

func NewAddPoolInstruction(programID solana.PublicKey, accounts PoolAccounts, params AddPoolParams) (solana.Instruction, error) {
	return newInstruction(programID, addPoolDiscriminator, params, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		readonly(accounts.TransferAuthority),
		writable(accounts.Perpetuals),
		writable(accounts.Pool),
		writable(accounts.LPTokenMint),
		readonly(SystemProgramID),
		readonly(TokenProgramID),
		readonly(RentSysvarID),
	})
}

func NewRemovePoolInstruction(programID solana.PublicKey, accounts PoolAccounts) (solana.Instruction, error) {
	return newInstruction(programID, removePoolDiscriminator, emptyParams{}, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		writable(accounts.TransferAuthority),
		writable(accounts.Perpetuals),
		writable(accounts.Pool),
		readonly(SystemProgramID),
	})
}

// CustodyAccounts - аккаунты инструкций жизненного цикла кастоди.
type CustodyAccounts struct {
	AdminAccounts
	TransferAuthority   solana.PublicKey
	Perpetuals          solana.PublicKey
	Pool                solana.PublicKey
	Custody             solana.PublicKey
	CustodyTokenAccount solana.PublicKey
	CustodyTokenMint    solana.PublicKey
}

// NewAddCustodyInitInstruction создает аккаунт кастоди. Должна идти перед addCustody
// в той же транзакции: сам аккаунт слишком велик для одной инструкции.
func NewAddCustodyInitInstruction(programID solana.PublicKey, accounts CustodyAccounts) (solana.Instruction, error) {
	return newInstruction(programID, addCustodyInitDiscriminator, emptyParams{}, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		writable(accounts.Pool),
		writable(accounts.Custody),
		readonly(accounts.CustodyTokenMint),
		readonly(SystemProgramID),
		readonly(TokenProgramID),
		readonly(RentSysvarID),
	})
}

func NewAddCustodyInstruction(programID solana.PublicKey, accounts CustodyAccounts, params CustodyConfig) (solana.Instruction, error) {
	return newInstruction(programID, addCustodyDiscriminator, params, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		readonly(accounts.Perpetuals),
		writable(accounts.Pool),
		readonly(accounts.Custody),
		readonly(accounts.TransferAuthority),
		writable(accounts.CustodyTokenAccount),
		readonly(accounts.CustodyTokenMint),
		readonly(SystemProgramID),
		readonly(TokenProgramID),
		readonly(RentSysvarID),
	})
}

func NewRemoveCustodyInstruction(programID solana.PublicKey, accounts CustodyAccounts, params RemoveCustodyParams) (solana.Instruction, error) {
	return newInstruction(programID, removeCustodyDiscriminator, params, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		writable(accounts.TransferAuthority),
		readonly(accounts.Perpetuals),
		writable(accounts.Pool),
		writable(accounts.Custody),
		writable(accounts.CustodyTokenAccount),
		readonly(SystemProgramID),
		readonly(TokenProgramID),
	})
}

func NewUpgradeCustodyInstruction(programID solana.PublicKey, accounts CustodyAccounts) (solana.Instruction, error) {
	return newInstruction(programID, upgradeCustodyDiscriminator, emptyParams{}, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		writable(accounts.Pool),
		writable(accounts.Custody),
		readonly(SystemProgramID),
	})
}

func NewSetCustodyConfigInstruction(programID solana.PublicKey, accounts CustodyAccounts, params CustodyConfig) (solana.Instruction, error) {
	return newInstruction(programID, setCustodyConfigDiscriminator, params, []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
		writable(accounts.Pool),
		writable(accounts.Custody),
	})
}

// NewSetCustomOraclePriceInstruction пишет цену в PDA oracle_account кастоди.
func NewSetCustomOraclePriceInstruction(programID solana.PublicKey, accounts CustodyAccounts, oracleAccount solana.PublicKey, params SetCustomOraclePriceParams) (solana.Instruction, error) {
	return newInstruction(programID, setCustomOraclePriceDiscriminator, params, []*solana.AccountMeta{
		payer(accounts.Admin),
		writable(accounts.Multisig),
		readonly(accounts.Perpetuals),
		readonly(accounts.Pool),
		readonly(accounts.Custody),
		writable(oracleAccount),
		readonly(SystemProgramID),
	})
}

func NewWithdrawFeesInstruction(programID solana.PublicKey, accounts CustodyAccounts, receivingTokenAccount solana.PublicKey, params WithdrawFeesParams) (solana.Instruction, error) {
	return newInstruction(programID, withdrawFeesDiscriminator, params, []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
		readonly(accounts.TransferAuthority),
		readonly(accounts.Perpetuals),
		writable(accounts.Pool),
		writable(accounts.Custody),
		writable(accounts.CustodyTokenAccount),
		writable(receivingTokenAccount),
		readonly(TokenProgramID),
	})
}

func NewWithdrawSolFeesInstruction(programID solana.PublicKey, accounts AdminAccounts, transferAuthority, perpetuals, receivingAccount solana.PublicKey, params WithdrawFeesParams) (solana.Instruction, error) {
	return newInstruction(programID, withdrawSolFeesDiscriminator, params, []*solana.AccountMeta{
		signer(accounts.Admin),
		writable(accounts.Multisig),
		readonly(transferAuthority),
		readonly(perpetuals),
		writable(receivingAccount),
	})
}

// NewUpdatePoolAumInstruction пересчитывает AUM пула; инструкция без аргументов.
func NewUpdatePoolAumInstruction(programID, feePayer, perpetuals, pool solana.PublicKey, custodyMetas []*solana.AccountMeta) (solana.Instruction, error) {
	metas := []*solana.AccountMeta{
		payer(feePayer),
		readonly(perpetuals),
		writable(pool),
	}
	metas = append(metas, custodyMetas...)
	return newInstruction(programID, updatePoolAumDiscriminator, nil, metas)
}
