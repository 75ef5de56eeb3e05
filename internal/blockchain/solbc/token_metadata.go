// internal/blockchain/solbc/token_metadata.go
package solbc

import (
	"context"
	"fmt"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const metadataTTL = 5 * time.Minute

// AccountInfoGetter - минимальный RPC-интерфейс для чтения аккаунта.
type AccountInfoGetter interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// TokenMetadata хранит on-chain данные mint
type TokenMetadata struct {
	Mint          solana.PublicKey
	Decimals      uint8
	Supply        uint64
	MintAuthority *solana.PublicKey
	UpdatedAt     time.Time
}

// TokenMetadataCache кэширует данные mint с TTL.
// Безопасен для конкурентного использования.
type TokenMetadataCache struct {
	cache  sync.Map
	ttl    time.Duration
	logger *zap.Logger
}

func NewTokenMetadataCache(logger *zap.Logger) *TokenMetadataCache {
	return &TokenMetadataCache{
		ttl:    metadataTTL,
		logger: logger.Named("token-metadata"),
	}
}

// GetTokenMetadata получает метаданные токена с кэшированием
func (c *TokenMetadataCache) GetTokenMetadata(ctx context.Context, client AccountInfoGetter, mint solana.PublicKey) (*TokenMetadata, error) {
	if metadata, ok := c.getFromCache(mint); ok {
		return metadata, nil
	}

	metadata, err := c.getFromChain(ctx, client, mint)
	if err != nil {
		return nil, err
	}
	c.cache.Store(mint, metadata)

	c.logger.Debug("token metadata retrieved",
		zap.String("mint", mint.String()),
		zap.Uint8("decimals", metadata.Decimals))
	return metadata, nil
}

// Decimals - сокращение для самого частого случая.
func (c *TokenMetadataCache) Decimals(ctx context.Context, client AccountInfoGetter, mint solana.PublicKey) (uint8, error) {
	md, err := c.GetTokenMetadata(ctx, client, mint)
	if err != nil {
		return 0, err
	}
	return md.Decimals, nil
}

// getFromCache получает метаданные из кэша с проверкой TTL
func (c *TokenMetadataCache) getFromCache(mint solana.PublicKey) (*TokenMetadata, bool) {
	if value, ok := c.cache.Load(mint); ok {
		metadata := value.(*TokenMetadata)
		if time.Since(metadata.UpdatedAt) < c.ttl {
			return metadata, true
		}
		c.cache.Delete(mint)
	}
	return nil, false
}

func (c *TokenMetadataCache) getFromChain(ctx context.Context, client AccountInfoGetter, mint solana.PublicKey) (*TokenMetadata, error) {
	acc, err := client.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get mint %s: %w", mint, err)
	}
	if acc == nil || acc.Value == nil {
		return nil, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}
	if !acc.Value.Owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("account %s is not an SPL token mint (owner %s)", mint, acc.Value.Owner)
	}

	var m token.Mint
	if err := bin.NewBinDecoder(acc.Value.Data.GetBinary()).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", mint, err)
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("mint %s is not initialized", mint)
	}

	return &TokenMetadata{
		Mint:          mint,
		Decimals:      m.Decimals,
		Supply:        m.Supply,
		MintAuthority: m.MintAuthority,
		UpdatedAt:     time.Now(),
	}, nil
}
