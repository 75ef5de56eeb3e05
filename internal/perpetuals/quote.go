// internal/perpetuals/quote.go
package perpetuals

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solbc"
)

// PositionRef идентифицирует позицию владельца.
type PositionRef struct {
	Owner          solana.PublicKey
	PoolName       string
	Mint           solana.PublicKey
	CollateralMint solana.PublicKey
	Side           Side
}

// EntryQuoteRequest - параметры котировки открытия позиции.
// Collateral в единицах mint залога, Size в единицах торгуемого mint.
type EntryQuoteRequest struct {
	PoolName       string
	Mint           solana.PublicKey
	CollateralMint solana.PublicKey
	Collateral     uint64
	Size           uint64
	Side           Side
}

// QuoteClient вызывает view-инструкции программы через симуляцию.
// Все значения возвращаются как есть, в fixed-point единицах программы.
type QuoteClient struct {
	client   blockchain.Client
	reader   *Reader
	resolver *Resolver
	payer    solana.PublicKey
	logger   *zap.Logger
}

// NewQuoteClient создает клиент котировок. payer используется только как
// fee payer симуляции и должен существовать в сети.
func NewQuoteClient(client blockchain.Client, reader *Reader, payer solana.PublicKey, logger *zap.Logger) *QuoteClient {
	return &QuoteClient{
		client:   client,
		reader:   reader,
		resolver: reader.Resolver(),
		payer:    payer,
		logger:   logger.Named("perpetuals-quote"),
	}
}

// simulate выполняет view-инструкцию и декодирует возвращенные данные в out.
func (q *QuoteClient) simulate(ctx context.Context, method string, ix solana.Instruction, out interface{}) error {
	// blockhash подменяется узлом при симуляции
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(q.payer))
	if err != nil {
		return fmt.Errorf("%s: build simulation tx: %w", method, err)
	}

	start := time.Now()
	sim, err := q.client.SimulateTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if sim.Failed() {
		pe := solbc.NewProgramError(sim.Err, sim.Logs)
		q.logger.Debug("View rejected by program",
			zap.String("method", method),
			zap.Error(pe))
		return fmt.Errorf("%s: %w", method, pe)
	}

	data, err := solbc.ReturnData(sim.Logs, q.resolver.ProgramID())
	if err != nil {
		if errors.Is(err, solbc.ErrNoReturnData) {
			return fmt.Errorf("%s: %w", method, ErrMissingReturnData)
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	if err := bin.NewBorshDecoder(data).Decode(out); err != nil {
		return fmt.Errorf("%s: decode return data: %w", method, err)
	}

	q.logger.Debug("View simulated",
		zap.String("method", method),
		zap.Uint64("units", sim.UnitsConsumed),
		zap.Duration("took", time.Since(start)))
	return nil
}

// OraclePrice возвращает цену инструмента (spot или EMA).
func (q *QuoteClient) OraclePrice(ctx context.Context, poolName string, mint solana.PublicKey, ema bool) (uint64, error) {
	market, err := q.reader.LoadMarket(ctx, poolName, mint, mint)
	if err != nil {
		return 0, err
	}
	ix, err := NewGetOraclePriceInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), market.Pool,
		market.CustodyOracle(), GetOraclePriceParams{Ema: ema})
	if err != nil {
		return 0, err
	}
	var price uint64
	if err := q.simulate(ctx, "getOraclePrice", ix, &price); err != nil {
		return 0, err
	}
	return price, nil
}

// EntryPriceAndFee котирует открытие позиции.
func (q *QuoteClient) EntryPriceAndFee(ctx context.Context, req EntryQuoteRequest) (*NewPositionPricesAndFee, error) {
	if req.Side == SideNone {
		return nil, ErrInvalidSide
	}
	market, err := q.reader.LoadMarket(ctx, req.PoolName, req.Mint, req.CollateralMint)
	if err != nil {
		return nil, err
	}
	return q.entryPriceAndFee(ctx, market, req)
}

func (q *QuoteClient) entryPriceAndFee(ctx context.Context, market *Market, req EntryQuoteRequest) (*NewPositionPricesAndFee, error) {
	ix, err := NewGetEntryPriceAndFeeInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), market.Pool,
		market.CustodyOracle(), market.CollateralOracle(),
		GetEntryPriceAndFeeParams{Collateral: req.Collateral, Size: req.Size, Side: req.Side})
	if err != nil {
		return nil, err
	}
	var out NewPositionPricesAndFee
	if err := q.simulate(ctx, "getEntryPriceAndFee", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EntryQuoter возвращает котировщик открытия, привязанный к одному рынку.
// Кастоди загружаются один раз, каждая котировка - одна симуляция.
func (q *QuoteClient) EntryQuoter(ctx context.Context, poolName string, mint, collateralMint solana.PublicKey) (func(context.Context, EntryQuoteRequest) (*NewPositionPricesAndFee, error), error) {
	market, err := q.reader.LoadMarket(ctx, poolName, mint, collateralMint)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, req EntryQuoteRequest) (*NewPositionPricesAndFee, error) {
		if req.Side == SideNone {
			return nil, ErrInvalidSide
		}
		return q.entryPriceAndFee(ctx, market, req)
	}, nil
}

func (q *QuoteClient) positionView(ctx context.Context, ref PositionRef) (ViewPositionAccounts, error) {
	market, err := q.reader.LoadMarket(ctx, ref.PoolName, ref.Mint, ref.CollateralMint)
	if err != nil {
		return ViewPositionAccounts{}, err
	}
	position, err := q.resolver.Position(ref.Owner, market.Pool, market.CustodyKey, ref.Side)
	if err != nil {
		return ViewPositionAccounts{}, err
	}
	return ViewPositionAccounts{
		Perpetuals:        q.resolver.Perpetuals(),
		Pool:              market.Pool,
		Position:          position,
		Custody:           market.CustodyOracle(),
		CollateralCustody: market.CollateralOracle(),
	}, nil
}

// ExitPriceAndFee котирует закрытие позиции.
func (q *QuoteClient) ExitPriceAndFee(ctx context.Context, ref PositionRef) (*PriceAndFee, error) {
	accounts, err := q.positionView(ctx, ref)
	if err != nil {
		return nil, err
	}
	metas, err := q.reader.CustodyMetas(ctx, ref.PoolName)
	if err != nil {
		return nil, err
	}
	ix, err := NewGetExitPriceAndFeeInstruction(q.resolver.ProgramID(), accounts, metas)
	if err != nil {
		return nil, err
	}
	var out PriceAndFee
	if err := q.simulate(ctx, "getExitPriceAndFee", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LiquidationPrice возвращает цену ликвидации с учетом изменения залога.
func (q *QuoteClient) LiquidationPrice(ctx context.Context, ref PositionRef, addCollateral, removeCollateral uint64) (uint64, error) {
	accounts, err := q.positionView(ctx, ref)
	if err != nil {
		return 0, err
	}
	ix, err := NewGetLiquidationPriceInstruction(q.resolver.ProgramID(), accounts,
		GetLiquidationPriceParams{AddCollateral: addCollateral, RemoveCollateral: removeCollateral})
	if err != nil {
		return 0, err
	}
	var price uint64
	if err := q.simulate(ctx, "getLiquidationPrice", ix, &price); err != nil {
		return 0, err
	}
	return price, nil
}

// LiquidationState возвращает 1, если позицию можно ликвидировать.
func (q *QuoteClient) LiquidationState(ctx context.Context, ref PositionRef) (uint8, error) {
	accounts, err := q.positionView(ctx, ref)
	if err != nil {
		return 0, err
	}
	ix, err := NewGetLiquidationStateInstruction(q.resolver.ProgramID(), accounts)
	if err != nil {
		return 0, err
	}
	var state uint8
	if err := q.simulate(ctx, "getLiquidationState", ix, &state); err != nil {
		return 0, err
	}
	return state, nil
}

// Pnl возвращает нереализованные прибыль и убыток позиции в USD.
func (q *QuoteClient) Pnl(ctx context.Context, ref PositionRef) (*ProfitAndLoss, error) {
	accounts, err := q.positionView(ctx, ref)
	if err != nil {
		return nil, err
	}
	ix, err := NewGetPnlInstruction(q.resolver.ProgramID(), accounts)
	if err != nil {
		return nil, err
	}
	var out ProfitAndLoss
	if err := q.simulate(ctx, "getPnl", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// poolState - пул, его кастоди и remaining accounts для AUM.
type poolState struct {
	address   solana.PublicKey
	pool      *PoolAccount
	custodies []*CustodyAccount
	metas     []*solana.AccountMeta
}

func (q *QuoteClient) loadPool(ctx context.Context, poolName string) (*poolState, error) {
	address, err := q.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	pool, err := q.reader.GetPool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	custodies, err := q.reader.custodiesOf(ctx, pool)
	if err != nil {
		return nil, err
	}
	return &poolState{
		address:   address,
		pool:      pool,
		custodies: custodies,
		metas:     remainingCustodyMetas(pool, custodies),
	}, nil
}

func (s *poolState) custodyOracle(r *Resolver, mint solana.PublicKey) (CustodyOracle, error) {
	key := r.Custody(s.address, mint)
	idx := s.pool.CustodyIndex(key)
	if idx < 0 {
		return CustodyOracle{}, &NotFoundError{Kind: "custody", Key: fmt.Sprintf("%s/%s", s.pool.Name, mint)}
	}
	return oracleOf(key, s.custodies[idx]), nil
}

// AddLiquidityAmountAndFee котирует количество LP-токенов за amountIn.
func (q *QuoteClient) AddLiquidityAmountAndFee(ctx context.Context, poolName string, mint solana.PublicKey, amountIn uint64) (*AmountAndFee, error) {
	state, err := q.loadPool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	custody, err := state.custodyOracle(q.resolver, mint)
	if err != nil {
		return nil, err
	}
	ix, err := NewGetAddLiquidityAmountAndFeeInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), state.address,
		custody, q.resolver.LPTokenMint(state.address), state.metas, amountIn)
	if err != nil {
		return nil, err
	}
	var out AmountAndFee
	if err := q.simulate(ctx, "getAddLiquidityAmountAndFee", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveLiquidityAmountAndFee котирует количество токенов за lpAmountIn.
func (q *QuoteClient) RemoveLiquidityAmountAndFee(ctx context.Context, poolName string, mint solana.PublicKey, lpAmountIn uint64) (*AmountAndFee, error) {
	state, err := q.loadPool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	custody, err := state.custodyOracle(q.resolver, mint)
	if err != nil {
		return nil, err
	}
	ix, err := NewGetRemoveLiquidityAmountAndFeeInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), state.address,
		custody, q.resolver.LPTokenMint(state.address), state.metas, lpAmountIn)
	if err != nil {
		return nil, err
	}
	var out AmountAndFee
	if err := q.simulate(ctx, "getRemoveLiquidityAmountAndFee", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwapAmountAndFees котирует обмен mintIn на mintOut.
func (q *QuoteClient) SwapAmountAndFees(ctx context.Context, poolName string, mintIn, mintOut solana.PublicKey, amountIn uint64) (*SwapAmountAndFees, error) {
	market, err := q.reader.LoadMarket(ctx, poolName, mintIn, mintOut)
	if err != nil {
		return nil, err
	}
	ix, err := NewGetSwapAmountAndFeesInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), market.Pool,
		market.CustodyOracle(), market.CollateralOracle(), amountIn)
	if err != nil {
		return nil, err
	}
	var out SwapAmountAndFees
	if err := q.simulate(ctx, "getSwapAmountAndFees", ix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssetsUnderManagement возвращает AUM пула в USD (USDDecimals).
func (q *QuoteClient) AssetsUnderManagement(ctx context.Context, poolName string) (uint128.Uint128, error) {
	state, err := q.loadPool(ctx, poolName)
	if err != nil {
		return uint128.Zero, err
	}
	ix, err := NewGetAssetsUnderManagementInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), state.address, state.metas)
	if err != nil {
		return uint128.Zero, err
	}
	var aum uint128.Uint128
	if err := q.simulate(ctx, "getAssetsUnderManagement", ix, &aum); err != nil {
		return uint128.Zero, err
	}
	return aum, nil
}

// LpTokenPrice возвращает цену LP-токена в USD.
func (q *QuoteClient) LpTokenPrice(ctx context.Context, poolName string) (uint64, error) {
	state, err := q.loadPool(ctx, poolName)
	if err != nil {
		return 0, err
	}
	ix, err := NewGetLpTokenPriceInstruction(q.resolver.ProgramID(), q.resolver.Perpetuals(), state.address,
		q.resolver.LPTokenMint(state.address), state.metas)
	if err != nil {
		return 0, err
	}
	var price uint64
	if err := q.simulate(ctx, "getLpTokenPrice", ix, &price); err != nil {
		return 0, err
	}
	return price, nil
}
