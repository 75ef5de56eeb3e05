// internal/perpetuals/reader.go
package perpetuals

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
)

// Reader читает и декодирует аккаунты программы.
type Reader struct {
	client   blockchain.Client
	resolver *Resolver
	logger   *zap.Logger
}

// NewReader создает Reader поверх RPC-клиента.
func NewReader(client blockchain.Client, resolver *Resolver, logger *zap.Logger) *Reader {
	return &Reader{
		client:   client,
		resolver: resolver,
		logger:   logger.Named("perpetuals-reader"),
	}
}

// Resolver возвращает резолвер адресов, с которым создан Reader.
func (r *Reader) Resolver() *Resolver { return r.resolver }

// fetch загружает данные аккаунта. Отсутствующий аккаунт - NotFoundError.
func (r *Reader) fetch(ctx context.Context, kind string, address solana.PublicKey) ([]byte, error) {
	info, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, &NotFoundError{Kind: kind, Key: address.String()}
		}
		return nil, fmt.Errorf("fetch %s %s: %w", kind, address, err)
	}
	if info == nil || info.Value == nil {
		return nil, &NotFoundError{Kind: kind, Key: address.String()}
	}
	return info.Value.Data.GetBinary(), nil
}

// Exists проверяет существование аккаунта.
func (r *Reader) Exists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := r.fetch(ctx, "account", address)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (r *Reader) GetPerpetuals(ctx context.Context) (*PerpetualsAccount, error) {
	data, err := r.fetch(ctx, "perpetuals", r.resolver.Perpetuals())
	if err != nil {
		return nil, err
	}
	return DecodePerpetuals(data)
}

func (r *Reader) GetMultisig(ctx context.Context) (*MultisigAccount, error) {
	data, err := r.fetch(ctx, "multisig", r.resolver.Multisig())
	if err != nil {
		return nil, err
	}
	return DecodeMultisig(data)
}

// GetPool загружает пул по имени.
func (r *Reader) GetPool(ctx context.Context, name string) (*PoolAccount, error) {
	address, err := r.resolver.Pool(name)
	if err != nil {
		return nil, err
	}
	data, err := r.fetch(ctx, "pool", address)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			nf.Key = name
		}
		return nil, err
	}
	return DecodePool(data)
}

// GetPools загружает все пулы, зарегистрированные в perpetuals.
func (r *Reader) GetPools(ctx context.Context) ([]*PoolAccount, error) {
	perps, err := r.GetPerpetuals(ctx)
	if err != nil {
		return nil, err
	}
	datas, err := r.fetchMultiple(ctx, "pool", perps.Pools)
	if err != nil {
		return nil, err
	}
	pools := make([]*PoolAccount, 0, len(datas))
	for _, data := range datas {
		pool, err := DecodePool(data)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// GetCustody загружает кастоди по имени пула и mint.
func (r *Reader) GetCustody(ctx context.Context, poolName string, mint solana.PublicKey) (*CustodyAccount, error) {
	pool, err := r.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	return r.GetCustodyAt(ctx, r.resolver.Custody(pool, mint))
}

// GetCustodyAt загружает кастоди по адресу.
func (r *Reader) GetCustodyAt(ctx context.Context, address solana.PublicKey) (*CustodyAccount, error) {
	data, err := r.fetch(ctx, "custody", address)
	if err != nil {
		return nil, err
	}
	return DecodeCustody(data)
}

// GetCustodies загружает все кастоди пула в порядке pool.Custodies.
func (r *Reader) GetCustodies(ctx context.Context, poolName string) ([]*CustodyAccount, error) {
	pool, err := r.GetPool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	return r.custodiesOf(ctx, pool)
}

func (r *Reader) custodiesOf(ctx context.Context, pool *PoolAccount) ([]*CustodyAccount, error) {
	datas, err := r.fetchMultiple(ctx, "custody", pool.Custodies)
	if err != nil {
		return nil, err
	}
	custodies := make([]*CustodyAccount, 0, len(datas))
	for _, data := range datas {
		c, err := DecodeCustody(data)
		if err != nil {
			return nil, err
		}
		custodies = append(custodies, c)
	}
	return custodies, nil
}

// CustodyMetas возвращает remaining accounts для расчета AUM:
// сначала все кастоди пула, затем их оракулы, все только на чтение.
func (r *Reader) CustodyMetas(ctx context.Context, poolName string) ([]*solana.AccountMeta, error) {
	pool, err := r.GetPool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	custodies, err := r.custodiesOf(ctx, pool)
	if err != nil {
		return nil, err
	}
	return remainingCustodyMetas(pool, custodies), nil
}

func remainingCustodyMetas(pool *PoolAccount, custodies []*CustodyAccount) []*solana.AccountMeta {
	metas := make([]*solana.AccountMeta, 0, 2*len(custodies))
	for _, address := range pool.Custodies {
		metas = append(metas, readonly(address))
	}
	for _, c := range custodies {
		metas = append(metas, readonly(c.Oracle.OracleAccount))
	}
	return metas
}

// GetPosition загружает позицию владельца.
func (r *Reader) GetPosition(ctx context.Context, owner solana.PublicKey, poolName string, mint solana.PublicKey, side Side) (*PositionAccount, error) {
	pool, err := r.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	address, err := r.resolver.Position(owner, pool, r.resolver.Custody(pool, mint), side)
	if err != nil {
		return nil, err
	}
	data, err := r.fetch(ctx, "position", address)
	if err != nil {
		return nil, err
	}
	return DecodePosition(data)
}

// PositionEntry - позиция и ее адрес.
type PositionEntry struct {
	Address  solana.PublicKey
	Position *PositionAccount
}

// GetUserPositions находит все позиции владельца.
func (r *Reader) GetUserPositions(ctx context.Context, owner solana.PublicKey) ([]PositionEntry, error) {
	prefix := make([]byte, 0, 40)
	prefix = append(prefix, positionAccountDiscriminator...)
	prefix = append(prefix, owner.Bytes()...)
	return r.scanPositions(ctx, []rpc.RPCFilter{
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(prefix)}},
	})
}

// GetPoolTokenPositions находит все позиции по паре (пул, инструмент).
func (r *Reader) GetPoolTokenPositions(ctx context.Context, poolName string, mint solana.PublicKey) ([]PositionEntry, error) {
	pool, err := r.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	custody := r.resolver.Custody(pool, mint)
	key := make([]byte, 0, 64)
	key = append(key, pool.Bytes()...)
	key = append(key, custody.Bytes()...)
	return r.scanPositions(ctx, []rpc.RPCFilter{
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(positionAccountDiscriminator)}},
		{Memcmp: &rpc.RPCFilterMemcmp{Offset: positionPoolOffset, Bytes: solana.Base58(key)}},
	})
}

func (r *Reader) scanPositions(ctx context.Context, filters []rpc.RPCFilter) ([]PositionEntry, error) {
	accounts, err := r.client.GetProgramAccounts(ctx, r.resolver.ProgramID(), &rpc.GetProgramAccountsOpts{
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("scan positions: %w", err)
	}

	entries := make([]PositionEntry, 0, len(accounts))
	for _, acc := range accounts {
		if acc == nil || acc.Account == nil {
			continue
		}
		pos, err := DecodePosition(acc.Account.Data.GetBinary())
		if err != nil {
			r.logger.Warn("Skipping undecodable position",
				zap.Stringer("address", acc.Pubkey),
				zap.Error(err))
			continue
		}
		entries = append(entries, PositionEntry{Address: acc.Pubkey, Position: pos})
	}
	return entries, nil
}

// GetCustomOracle загружает аккаунт кастомного оракула кастоди.
func (r *Reader) GetCustomOracle(ctx context.Context, poolName string, mint solana.PublicKey) (*CustomOracleAccount, error) {
	pool, err := r.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	data, err := r.fetch(ctx, "custom oracle", r.resolver.CustomOracle(pool, mint))
	if err != nil {
		return nil, err
	}
	return DecodeCustomOracle(data)
}

func (r *Reader) fetchMultiple(ctx context.Context, kind string, addresses []solana.PublicKey) ([][]byte, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	res, err := r.client.GetMultipleAccounts(ctx, addresses...)
	if err != nil {
		return nil, fmt.Errorf("fetch %d %s accounts: %w", len(addresses), kind, err)
	}
	if res == nil || len(res.Value) != len(addresses) {
		return nil, fmt.Errorf("fetch %s accounts: unexpected response size", kind)
	}
	out := make([][]byte, len(addresses))
	for i, acc := range res.Value {
		if acc == nil {
			return nil, &NotFoundError{Kind: kind, Key: addresses[i].String()}
		}
		out[i] = acc.Data.GetBinary()
	}
	return out, nil
}

// Market - кастоди торгуемого инструмента и залога в одном пуле.
type Market struct {
	PoolName          string
	Pool              solana.PublicKey
	Custody           *CustodyAccount
	CustodyKey        solana.PublicKey
	CollateralCustody *CustodyAccount
	CollateralKey     solana.PublicKey
}

// CustodyOracle возвращает ценовые аккаунты торгуемой кастоди.
func (m *Market) CustodyOracle() CustodyOracle {
	return oracleOf(m.CustodyKey, m.Custody)
}

// CollateralOracle возвращает ценовые аккаунты кастоди залога.
func (m *Market) CollateralOracle() CustodyOracle {
	return oracleOf(m.CollateralKey, m.CollateralCustody)
}

func oracleOf(key solana.PublicKey, c *CustodyAccount) CustodyOracle {
	// twap-аккаунт программы совпадает с ценовым аккаунтом кастоди
	return CustodyOracle{Custody: key, Oracle: c.Oracle.OracleAccount, Twap: c.Oracle.OracleAccount}
}

// LoadMarket параллельно загружает обе кастоди рынка.
func (r *Reader) LoadMarket(ctx context.Context, poolName string, mint, collateralMint solana.PublicKey) (*Market, error) {
	pool, err := r.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	m := &Market{
		PoolName:      poolName,
		Pool:          pool,
		CustodyKey:    r.resolver.Custody(pool, mint),
		CollateralKey: r.resolver.Custody(pool, collateralMint),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := r.GetCustodyAt(gctx, m.CustodyKey)
		m.Custody = c
		return err
	})
	if collateralMint.Equals(mint) {
		if err := g.Wait(); err != nil {
			return nil, err
		}
		m.CollateralCustody = m.Custody
		return m, nil
	}
	g.Go(func() error {
		c, err := r.GetCustodyAt(gctx, m.CollateralKey)
		m.CollateralCustody = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}
