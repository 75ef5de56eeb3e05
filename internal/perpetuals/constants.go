// internal/perpetuals/constants.go
package perpetuals

import (
	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID - адрес программы perpetuals по умолчанию.
var DefaultProgramID = solana.MustPublicKeyFromBase58("6RfdxdBjsqLmgBtJizGSAu4NyXTctDGPRYJB8YmeqGio")

// Системные программы и sysvar, участвующие в инструкциях.
var (
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	RentSysvarID             = solana.SysVarRentPubkey
	BPFLoaderUpgradeableID   = solana.BPFLoaderUpgradeableProgramID
)

// Fixed-point масштабы программы.
const (
	BPSDecimals   = 4
	BPSPower      = uint64(10_000)
	RateDecimals  = 9
	RatePower     = uint64(1_000_000_000)
	PriceDecimals = 6
	USDDecimals   = 6
	LPDecimals    = USDDecimals

	// MintAccountSize - размер SPL mint аккаунта.
	MintAccountSize = uint64(82)
	// MaxPoolNameLen - предел имени пула в байтах UTF-8: имя идет
	// seed'ом PDA пула, а seed не длиннее solana.MaxSeedLength.
	MaxPoolNameLen = solana.MaxSeedLength
	// MaxAdminSigners - размер массива signers в multisig.
	MaxAdminSigners = 6
)

// Метки (первый seed) для PDA программы.
const (
	LabelPerpetuals          = "perpetuals"
	LabelMultisig            = "multisig"
	LabelTransferAuthority   = "transfer_authority"
	LabelPool                = "pool"
	LabelCustody             = "custody"
	LabelCustodyTokenAccount = "custody_token_account"
	LabelLPTokenMint         = "lp_token_mint"
	LabelOracleAccount       = "oracle_account"
	LabelPosition            = "position"
)
