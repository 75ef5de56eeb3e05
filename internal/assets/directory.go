// =============================
// File: internal/assets/directory.go
// =============================
package assets

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/perps-client/internal/oracle"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Type - класс инструмента.
type Type string

const (
	TypeCommodities          Type = "Commodities"
	TypeCrypto               Type = "Crypto"
	TypeCryptoIndex          Type = "Crypto Index"
	TypeCryptoNAV            Type = "Crypto NAV"
	TypeCryptoRedemptionRate Type = "Crypto Redemption Rate"
	TypeEquity               Type = "Equity"
	TypeFX                   Type = "FX"
	TypeMetal                Type = "Metal"
	TypeRates                Type = "Rates"
)

func (t Type) valid() bool {
	switch t {
	case TypeCommodities, TypeCrypto, TypeCryptoIndex, TypeCryptoNAV, TypeCryptoRedemptionRate,
		TypeEquity, TypeFX, TypeMetal, TypeRates:
		return true
	}
	return false
}

// Asset - неизменяемая запись каталога.
// Mint нулевой для синтетических инструментов без токена.
type Asset struct {
	Symbol   string
	Name     string
	Type     Type
	Mint     solana.PublicKey
	FeedID   oracle.FeedID
	IsStable bool
	Decimals uint8
}

// Virtual сообщает, что у инструмента нет существующего mint.
func (a *Asset) Virtual() bool { return a.Mint.IsZero() }

// NotFoundError - ключ не найден в индексе KeySpace.
type NotFoundError struct {
	Key      string
	KeySpace string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset %q not found by %s", e.Key, e.KeySpace)
}

type catalogFile struct {
	Assets []struct {
		Symbol   string `yaml:"symbol"`
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		Mint     string `yaml:"mint"`
		FeedID   string `yaml:"feed_id"`
		Stable   bool   `yaml:"stable"`
		Decimals uint8  `yaml:"decimals"`
	} `yaml:"assets"`
}

// Directory - каталог инструментов с индексами по символу, mint и feed id.
// Создается один раз и дальше только читается.
type Directory struct {
	bySymbol map[string]*Asset
	byMint   map[solana.PublicKey]*Asset
	byFeed   map[oracle.FeedID]*Asset
}

// Default загружает встроенный каталог.
func Default() (*Directory, error) {
	return Load(defaultCatalog)
}

// LoadFile загружает каталог из YAML-файла.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset catalog: %w", err)
	}
	return Load(data)
}

// Load разбирает YAML-каталог и строит индексы.
func Load(data []byte) (*Directory, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse asset catalog: %w", err)
	}
	if len(file.Assets) == 0 {
		return nil, fmt.Errorf("asset catalog is empty")
	}

	d := &Directory{
		bySymbol: make(map[string]*Asset, len(file.Assets)),
		byMint:   make(map[solana.PublicKey]*Asset, len(file.Assets)),
		byFeed:   make(map[oracle.FeedID]*Asset, len(file.Assets)),
	}
	for i, raw := range file.Assets {
		if raw.Symbol == "" {
			return nil, fmt.Errorf("asset #%d: symbol is required", i)
		}
		asset := &Asset{
			Symbol:   strings.ToUpper(raw.Symbol),
			Name:     raw.Name,
			Type:     Type(raw.Type),
			IsStable: raw.Stable,
			Decimals: raw.Decimals,
		}
		if !asset.Type.valid() {
			return nil, fmt.Errorf("asset %s: unknown type %q", asset.Symbol, raw.Type)
		}
		feed, err := oracle.ParseFeedID(raw.FeedID)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.Symbol, err)
		}
		asset.FeedID = feed
		if raw.Mint != "" {
			if asset.Mint, err = solana.PublicKeyFromBase58(raw.Mint); err != nil {
				return nil, fmt.Errorf("asset %s: invalid mint: %w", asset.Symbol, err)
			}
		}

		if _, dup := d.bySymbol[asset.Symbol]; dup {
			return nil, fmt.Errorf("asset %s: duplicate symbol", asset.Symbol)
		}
		d.bySymbol[asset.Symbol] = asset
		d.byFeed[feed] = asset
		if !asset.Virtual() {
			d.byMint[asset.Mint] = asset
		}
	}
	return d, nil
}

// BySymbol ищет инструмент без учета регистра.
func (d *Directory) BySymbol(symbol string) (*Asset, error) {
	if a, ok := d.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return a, nil
	}
	return nil, &NotFoundError{Key: symbol, KeySpace: "symbol"}
}

func (d *Directory) ByMint(mint solana.PublicKey) (*Asset, error) {
	if a, ok := d.byMint[mint]; ok {
		return a, nil
	}
	return nil, &NotFoundError{Key: mint.String(), KeySpace: "mint"}
}

// ByFeedID принимает feed id в hex, с префиксом 0x или без.
func (d *Directory) ByFeedID(feedID string) (*Asset, error) {
	id, err := oracle.ParseFeedID(feedID)
	if err != nil {
		return nil, &NotFoundError{Key: feedID, KeySpace: "feed id"}
	}
	if a, ok := d.byFeed[id]; ok {
		return a, nil
	}
	return nil, &NotFoundError{Key: feedID, KeySpace: "feed id"}
}

// Resolve ищет по символу, затем по mint, затем по feed id.
func (d *Directory) Resolve(key string) (*Asset, error) {
	if a, err := d.BySymbol(key); err == nil {
		return a, nil
	}
	if pk, err := solana.PublicKeyFromBase58(key); err == nil {
		if a, err := d.ByMint(pk); err == nil {
			return a, nil
		}
	}
	if a, err := d.ByFeedID(key); err == nil {
		return a, nil
	}
	return nil, &NotFoundError{Key: key, KeySpace: "symbol, mint or feed id"}
}

// All возвращает по одной записи на feed id, отсортированные по символу.
func (d *Directory) All() []*Asset {
	return d.filter(func(*Asset) bool { return true })
}

func (d *Directory) ByType(t Type) []*Asset {
	return d.filter(func(a *Asset) bool { return a.Type == t })
}

func (d *Directory) ByStability(stable bool) []*Asset {
	return d.filter(func(a *Asset) bool { return a.IsStable == stable })
}

// filter обходит все три индекса, поэтому дедуплицирует по feed id.
func (d *Directory) filter(keep func(*Asset) bool) []*Asset {
	seen := make(map[oracle.FeedID]struct{}, len(d.byFeed))
	out := make([]*Asset, 0, len(d.byFeed))
	add := func(a *Asset) {
		if _, ok := seen[a.FeedID]; ok || !keep(a) {
			return
		}
		seen[a.FeedID] = struct{}{}
		out = append(out, a)
	}
	for _, a := range d.bySymbol {
		add(a)
	}
	for _, a := range d.byMint {
		add(a)
	}
	for _, a := range d.byFeed {
		add(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
