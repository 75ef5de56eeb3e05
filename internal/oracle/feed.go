// internal/oracle/feed.go
package oracle

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// PushOracleProgramID - программа Pyth push oracle, владеющая price feed аккаунтами.
var PushOracleProgramID = solana.MustPublicKeyFromBase58("pythWSnswVUd12oZpeFP8e9CVaEqJg25g1Vtc2biRsT")

// DefaultShard используется, если shard не задан явно.
const DefaultShard uint16 = 0

// FeedID - 32-байтовый идентификатор ценового потока Pyth.
type FeedID [32]byte

// ParseFeedID разбирает hex-строку с необязательным префиксом 0x.
func ParseFeedID(s string) (FeedID, error) {
	var id FeedID
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid feed id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("invalid feed id length: expected 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MustParseFeedID паникует на некорректном входе; для констант каталога.
func MustParseFeedID(s string) FeedID {
	id, err := ParseFeedID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String возвращает hex без префикса, в нижнем регистре.
func (f FeedID) String() string {
	return hex.EncodeToString(f[:])
}

// FeedAccount выводит адрес price feed аккаунта для shard и feed id.
func FeedAccount(shard uint16, feedID FeedID) (solana.PublicKey, error) {
	shardSeed := make([]byte, 2)
	binary.LittleEndian.PutUint16(shardSeed, shard)
	addr, _, err := solana.FindProgramAddress([][]byte{shardSeed, feedID[:]}, PushOracleProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive feed account for %s: %w", feedID, err)
	}
	return addr, nil
}

// FeedResolver превращает feed id в адрес аккаунта с фиксированным shard.
type FeedResolver struct {
	shard uint16
}

// NewFeedResolver создает резолвер для shard.
func NewFeedResolver(shard uint16) *FeedResolver {
	return &FeedResolver{shard: shard}
}

// Resolve принимает hex feed id и возвращает адрес аккаунта.
func (r *FeedResolver) Resolve(feedID string) (solana.PublicKey, error) {
	id, err := ParseFeedID(feedID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return FeedAccount(r.shard, id)
}

// Shard возвращает используемый shard.
func (r *FeedResolver) Shard() uint16 { return r.shard }
