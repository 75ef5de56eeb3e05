// internal/oracle/price_update.go
package oracle

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	priceUpdateV2Discriminator = []byte{34, 241, 35, 99, 157, 126, 244, 205}
	twapUpdateDiscriminator    = []byte{104, 192, 188, 72, 246, 166, 12, 81}
)

// ErrNotPriceUpdate - аккаунт не является PriceUpdateV2/TwapUpdate.
var ErrNotPriceUpdate = errors.New("account is not a pyth price update")

// VerificationLevel - уровень проверки Wormhole-подписей обновления.
type VerificationLevel struct {
	Full          bool
	NumSignatures uint8 // только для частичной проверки
}

func (v *VerificationLevel) UnmarshalWithDecoder(dec *bin.Decoder) error {
	variant, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	switch variant {
	case 0:
		v.Full = false
		v.NumSignatures, err = dec.ReadUint8()
		return err
	case 1:
		v.Full = true
		return nil
	default:
		return fmt.Errorf("unknown verification level %d", variant)
	}
}

func (v VerificationLevel) MarshalWithEncoder(enc *bin.Encoder) error {
	if v.Full {
		return enc.WriteUint8(1)
	}
	if err := enc.WriteUint8(0); err != nil {
		return err
	}
	return enc.WriteUint8(v.NumSignatures)
}

// PriceFeedMessage - цена и EMA в формате Pyth: value * 10^exponent.
type PriceFeedMessage struct {
	FeedID          FeedID
	Price           int64
	Conf            uint64
	Exponent        int32
	PublishTime     int64
	PrevPublishTime int64
	EmaPrice        int64
	EmaConf         uint64
}

// PriceUpdateV2 - аккаунт Pyth receiver с последней ценой.
type PriceUpdateV2 struct {
	WriteAuthority    solana.PublicKey
	VerificationLevel VerificationLevel
	PriceMessage      PriceFeedMessage
	PostedSlot        uint64
}

// TwapPrice - усредненная по окну цена.
type TwapPrice struct {
	FeedID         FeedID
	StartTime      int64
	EndTime        int64
	Price          int64
	Conf           uint64
	Exponent       int32
	DownSlotsRatio uint32
}

// TwapUpdate - аккаунт Pyth receiver с TWAP.
type TwapUpdate struct {
	WriteAuthority solana.PublicKey
	Twap           TwapPrice
}

// DecodePriceUpdateV2 декодирует данные аккаунта PriceUpdateV2.
func DecodePriceUpdateV2(data []byte) (*PriceUpdateV2, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], priceUpdateV2Discriminator) {
		return nil, ErrNotPriceUpdate
	}
	var out PriceUpdateV2
	if err := bin.NewBorshDecoder(data[8:]).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode price update: %w", err)
	}
	return &out, nil
}

// DecodeTwapUpdate декодирует данные аккаунта TwapUpdate.
func DecodeTwapUpdate(data []byte) (*TwapUpdate, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], twapUpdateDiscriminator) {
		return nil, ErrNotPriceUpdate
	}
	var out TwapUpdate
	if err := bin.NewBorshDecoder(data[8:]).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode twap update: %w", err)
	}
	return &out, nil
}

// EncodePriceUpdateV2 сериализует аккаунт с дискриминатором (для тестов и фикстур).
func EncodePriceUpdateV2(u *PriceUpdateV2) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(priceUpdateV2Discriminator)
	if err := bin.NewBorshEncoder(buf).Encode(u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Scaled переводит value * 10^exponent в decimal.
func Scaled(value int64, exponent int32) decimal.Decimal {
	return decimal.New(value, exponent)
}

// PriceDecimal возвращает spot-цену как decimal.
func (m PriceFeedMessage) PriceDecimal() decimal.Decimal {
	return Scaled(m.Price, m.Exponent)
}

// EmaDecimal возвращает EMA-цену как decimal.
func (m PriceFeedMessage) EmaDecimal() decimal.Decimal {
	return Scaled(m.EmaPrice, m.Exponent)
}

// Age возвращает возраст цены относительно now.
func (m PriceFeedMessage) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(m.PublishTime, 0))
}

// ToProgramPrice переводит цену Pyth в fixed-point с заданным числом знаков.
// Отрицательная цена не имеет смысла для программы и дает ошибку.
func ToProgramPrice(value int64, exponent int32, decimals int32) (uint64, error) {
	if value < 0 {
		return 0, fmt.Errorf("negative price %d", value)
	}
	d := Scaled(value, exponent).Shift(decimals).Truncate(0)
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("price %s overflows u64", d)
	}
	return d.BigInt().Uint64(), nil
}
