// internal/perpetuals/accounts.go
package perpetuals

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Account discriminators (sha256("account:<Name>")[:8])
var (
	custodyAccountDiscriminator      = []byte{1, 184, 48, 81, 93, 131, 63, 145}
	customOracleAccountDiscriminator = []byte{227, 170, 164, 218, 127, 16, 35, 223}
	multisigAccountDiscriminator     = []byte{224, 116, 121, 186, 68, 161, 79, 236}
	perpetualsAccountDiscriminator   = []byte{28, 167, 98, 191, 104, 82, 108, 196}
	poolAccountDiscriminator         = []byte{241, 154, 109, 4, 17, 177, 109, 188}
	positionAccountDiscriminator     = []byte{170, 188, 143, 228, 122, 64, 247, 208}
)

// Смещения полей позиции, используемые в memcmp-фильтрах.
const (
	positionOwnerOffset = 8
	positionPoolOffset  = 40
)

// PerpetualsAccount - глобальное состояние программы.
type PerpetualsAccount struct {
	Permissions           Permissions
	Pools                 []solana.PublicKey
	TransferAuthorityBump uint8
	PerpetualsBump        uint8
	InceptionTime         int64
}

// PoolAccount - пул ликвидности.
type PoolAccount struct {
	Name          string
	Custodies     []solana.PublicKey
	Ratios        []TokenRatios
	AumUsd        uint128.Uint128
	Bump          uint8
	LpTokenBump   uint8
	InceptionTime int64
}

// CustodyIndex возвращает позицию кастоди в пуле или -1.
func (p *PoolAccount) CustodyIndex(custody solana.PublicKey) int {
	for i, c := range p.Custodies {
		if c.Equals(custody) {
			return i
		}
	}
	return -1
}

type Assets struct {
	Collateral   uint64
	ProtocolFees uint64
	Owned        uint64
	Locked       uint64
}

// FeesStats используется и для collected fees, и для объемов.
type FeesStats struct {
	SwapUsd            uint64
	AddLiquidityUsd    uint64
	RemoveLiquidityUsd uint64
	OpenPositionUsd    uint64
	ClosePositionUsd   uint64
	LiquidationUsd     uint64
}

type TradeStats struct {
	ProfitUsd  uint64
	LossUsd    uint64
	OiLongUsd  uint64
	OiShortUsd uint64
}

type PositionStats struct {
	OpenPositions              uint64
	CollateralUsd              uint64
	SizeUsd                    uint64
	BorrowSizeUsd              uint64
	LockedAmount               uint64
	WeightedPrice              uint128.Uint128
	TotalQuantity              uint128.Uint128
	CumulativeInterestUsd      uint64
	CumulativeInterestSnapshot uint128.Uint128
}

type BorrowRateState struct {
	CurrentRate        uint64
	CumulativeInterest uint128.Uint128
	LastUpdate         int64
}

// CustodyAccount - состояние одного инструмента в пуле.
type CustodyAccount struct {
	Pool             solana.PublicKey
	Mint             solana.PublicKey
	TokenAccount     solana.PublicKey
	Decimals         uint8
	IsStable         bool
	IsVirtual        bool
	Oracle           OracleParams
	Pricing          PricingParams
	Permissions      Permissions
	Fees             Fees
	BorrowRate       BorrowRateParams
	Assets           Assets
	CollectedFees    FeesStats
	VolumeStats      FeesStats
	TradeStats       TradeStats
	LongPositions    PositionStats
	ShortPositions   PositionStats
	BorrowRateState  BorrowRateState
	Bump             uint8
	TokenAccountBump uint8
}

// PositionAccount - открытая позиция трейдера.
type PositionAccount struct {
	Owner                      solana.PublicKey
	Pool                       solana.PublicKey
	Custody                    solana.PublicKey
	CollateralCustody          solana.PublicKey
	OpenTime                   int64
	UpdateTime                 int64
	Side                       Side
	Price                      uint64
	SizeUsd                    uint64
	BorrowSizeUsd              uint64
	CollateralUsd              uint64
	UnrealizedProfitUsd        uint64
	UnrealizedLossUsd          uint64
	CumulativeInterestSnapshot uint128.Uint128
	LockedAmount               uint64
	CollateralAmount           uint64
	TakeProfitPrice            *uint64 `bin:"optional"`
	StopLossPrice              *uint64 `bin:"optional"`
	Bump                       uint8
}

// MultisigAccount - набор админов и состояние текущего голосования.
type MultisigAccount struct {
	NumSigners             uint8
	NumSigned              uint8
	MinSignatures          uint8
	InstructionAccountsLen uint8
	InstructionDataLen     uint16
	InstructionHash        uint64
	Signers                [MaxAdminSigners]solana.PublicKey
	Signed                 [MaxAdminSigners]uint8
	Bump                   uint8
}

// Admins возвращает активных подписантов.
func (m *MultisigAccount) Admins() []solana.PublicKey {
	n := int(m.NumSigners)
	if n > MaxAdminSigners {
		n = MaxAdminSigners
	}
	out := make([]solana.PublicKey, n)
	copy(out, m.Signers[:n])
	return out
}

// CustomOracleAccount - цена, выставленная админом для кастомного оракула.
type CustomOracleAccount struct {
	Price       uint64
	Expo        int32
	Conf        uint64
	Ema         uint64
	PublishTime int64
}

// decodeAccount проверяет дискриминатор и декодирует borsh-данные в out.
func decodeAccount(kind string, discriminator, data []byte, out interface{}) error {
	if len(data) < 8 || !bytes.Equal(data[:8], discriminator) {
		return fmt.Errorf("%s: %w", kind, ErrAccountDiscriminator)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(out); err != nil {
		return fmt.Errorf("decode %s account: %w", kind, err)
	}
	return nil
}

func DecodePerpetuals(data []byte) (*PerpetualsAccount, error) {
	var acc PerpetualsAccount
	if err := decodeAccount("perpetuals", perpetualsAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodePool(data []byte) (*PoolAccount, error) {
	var acc PoolAccount
	if err := decodeAccount("pool", poolAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeCustody(data []byte) (*CustodyAccount, error) {
	var acc CustodyAccount
	if err := decodeAccount("custody", custodyAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodePosition(data []byte) (*PositionAccount, error) {
	var acc PositionAccount
	if err := decodeAccount("position", positionAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeMultisig(data []byte) (*MultisigAccount, error) {
	var acc MultisigAccount
	if err := decodeAccount("multisig", multisigAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeCustomOracle(data []byte) (*CustomOracleAccount, error) {
	var acc CustomOracleAccount
	if err := decodeAccount("custom oracle", customOracleAccountDiscriminator, data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}
