// internal/faucet/faucet.go
package faucet

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
)

// DefaultProgramID - программа AUSD faucet в тестовых окружениях.
var DefaultProgramID = solana.MustPublicKeyFromBase58("7bQarQwLudufBiKvbMA3RX5zco86TwxiVf9395tiLk8R")

// Метки PDA программы faucet. Вторым seed всегда идет mint.
const (
	LabelConfig        = "faucet_config"
	LabelMintAuthority = "mint_authority"
)

var (
	initializeDiscriminator            = []byte{175, 175, 109, 31, 13, 152, 155, 237}
	mintToUserDiscriminator            = []byte{75, 194, 44, 77, 10, 65, 232, 85}
	transferMintAuthorityDiscriminator = []byte{87, 237, 187, 84, 168, 175, 241, 75}
	configAccountDiscriminator         = []byte{216, 31, 49, 154, 106, 125, 143, 142}
)

// ErrNoMint возвращается, если mint faucet не настроен.
var ErrNoMint = errors.New("faucet mint is not configured")

// Config - on-chain состояние faucet.
type Config struct {
	Admin              solana.PublicKey
	Mint               solana.PublicKey
	MintAuthority      solana.PublicKey
	MintAuthorityNonce uint8
}

// DecodeConfig разбирает аккаунт faucet_config.
func DecodeConfig(data []byte) (*Config, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], configAccountDiscriminator) {
		return nil, fmt.Errorf("faucet config: %w", perpetuals.ErrAccountDiscriminator)
	}
	var cfg Config
	if err := bin.NewBorshDecoder(data[8:]).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode faucet config: %w", err)
	}
	return &cfg, nil
}

// Addresses - PDA faucet для одного mint.
type Addresses struct {
	Mint          solana.PublicKey
	Config        perpetuals.DerivedAddress
	MintAuthority perpetuals.DerivedAddress
}

// Derive выводит адреса faucet для mint.
func Derive(programID, mint solana.PublicKey) (Addresses, error) {
	if mint.IsZero() {
		return Addresses{}, ErrNoMint
	}
	resolver := perpetuals.NewResolver(programID)
	cfg, err := resolver.Derive(LabelConfig, perpetuals.SeedAddress(mint))
	if err != nil {
		return Addresses{}, err
	}
	authority, err := resolver.Derive(LabelMintAuthority, perpetuals.SeedAddress(mint))
	if err != nil {
		return Addresses{}, err
	}
	return Addresses{Mint: mint, Config: cfg, MintAuthority: authority}, nil
}
