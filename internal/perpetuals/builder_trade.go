// =============================
// File: internal/perpetuals/builder_trade.go
// =============================
package perpetuals

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/oracle"
	"github.com/rovshanmuradov/perps-client/internal/types"
)

func validateSlippage(cfg types.SlippageConfig) error {
	if cfg.Type == "" {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return newValidationError("slippage", cfg.Value, err.Error())
	}
	return nil
}

// withDefault подставляет SlippageNone для незаданной политики.
func withDefault(cfg types.SlippageConfig) types.SlippageConfig {
	if cfg.Type == "" {
		return types.SlippageConfig{Type: types.SlippageNone}
	}
	return cfg
}

// LiquidityRequest - параметры add/remove liquidity.
// Amount - токены кастоди для add и LP-токены для remove.
type LiquidityRequest struct {
	Owner    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Amount   uint64
	Slippage types.SlippageConfig
}

func (r LiquidityRequest) validate() error {
	if err := ValidatePoolName(r.PoolName); err != nil {
		return err
	}
	if err := requireKey("mint", r.Mint); err != nil {
		return err
	}
	if err := requirePositive("amount", r.Amount); err != nil {
		return err
	}
	return validateSlippage(r.Slippage)
}

// liquidityAccounts загружает пул и кастоди и собирает общий набор аккаунтов.
func (b *Builder) liquidityAccounts(ctx context.Context, owner solana.PublicKey, poolName string, mint solana.PublicKey) (LiquidityAccounts, error) {
	pool, err := b.reader.GetPool(ctx, poolName)
	if err != nil {
		return LiquidityAccounts{}, err
	}
	custodies, err := b.reader.custodiesOf(ctx, pool)
	if err != nil {
		return LiquidityAccounts{}, err
	}

	poolKey, err := b.resolver.Pool(poolName)
	if err != nil {
		return LiquidityAccounts{}, err
	}
	custodyKey := b.resolver.Custody(poolKey, mint)
	idx := pool.CustodyIndex(custodyKey)
	if idx < 0 {
		return LiquidityAccounts{}, &NotFoundError{Kind: "custody", Key: fmt.Sprintf("%s/%s", poolName, mint)}
	}

	return LiquidityAccounts{
		Owner:               owner,
		TransferAuthority:   b.resolver.TransferAuthority(),
		Perpetuals:          b.resolver.Perpetuals(),
		Pool:                poolKey,
		Custody:             oracleOf(custodyKey, custodies[idx]),
		CustodyTokenAccount: b.resolver.CustodyTokenAccount(poolKey, mint),
		LPTokenMint:         b.resolver.LPTokenMint(poolKey),
		Remaining:           remainingCustodyMetas(pool, custodies),
	}, nil
}

// AddLiquidity котирует количество LP-токенов и ставит minLpAmountOut
// по политике проскальзывания.
func (b *Builder) AddLiquidity(ctx context.Context, req LiquidityRequest) (*transaction.Unsigned, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	quote, err := b.quotes.AddLiquidityAmountAndFee(ctx, req.PoolName, req.Mint, req.Amount)
	if err != nil {
		return nil, err
	}
	minLpOut := types.CalculateMinAmountOut(quote.Amount, withDefault(req.Slippage))

	accounts, err := b.liquidityAccounts(ctx, req.Owner, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}

	tx := b.newTx(req.Owner)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, req.Owner, req.Owner, req.Mint); err != nil {
		return nil, err
	}
	if accounts.LPTokenAccount, err = b.ensureATA(ctx, tx, req.Owner, req.Owner, accounts.LPTokenMint); err != nil {
		return nil, err
	}

	b.logger.Info("Add liquidity quoted",
		zap.String("pool", req.PoolName),
		zap.Stringer("mint", req.Mint),
		zap.Uint64("amount_in", req.Amount),
		zap.Uint64("lp_quote", quote.Amount),
		zap.Uint64("fee", quote.Fee),
		zap.Uint64("min_lp_out", minLpOut))

	ix, err := NewAddLiquidityInstruction(b.resolver.ProgramID(), accounts,
		AddLiquidityParams{AmountIn: req.Amount, MinLpAmountOut: minLpOut})
	return b.finish(ctx, "addLiquidity", tx, ix, err)
}

// RemoveLiquidity котирует выход токенов за LP и ставит minAmountOut.
func (b *Builder) RemoveLiquidity(ctx context.Context, req LiquidityRequest) (*transaction.Unsigned, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	quote, err := b.quotes.RemoveLiquidityAmountAndFee(ctx, req.PoolName, req.Mint, req.Amount)
	if err != nil {
		return nil, err
	}
	minOut := types.CalculateMinAmountOut(quote.Amount, withDefault(req.Slippage))

	accounts, err := b.liquidityAccounts(ctx, req.Owner, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}

	tx := b.newTx(req.Owner)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, req.Owner, req.Owner, req.Mint); err != nil {
		return nil, err
	}
	if accounts.LPTokenAccount, err = b.ensureATA(ctx, tx, req.Owner, req.Owner, accounts.LPTokenMint); err != nil {
		return nil, err
	}

	ix, err := NewRemoveLiquidityInstruction(b.resolver.ProgramID(), accounts,
		RemoveLiquidityParams{LpAmountIn: req.Amount, MinAmountOut: minOut})
	return b.finish(ctx, "removeLiquidity", tx, ix, err)
}

// SwapRequest - обмен MintIn на MintOut внутри одного пула.
type SwapRequest struct {
	Owner    solana.PublicKey
	PoolName string
	MintIn   solana.PublicKey
	MintOut  solana.PublicKey
	AmountIn uint64
	Slippage types.SlippageConfig
}

func (b *Builder) Swap(ctx context.Context, req SwapRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if err := requireKey("mintIn", req.MintIn); err != nil {
		return nil, err
	}
	if err := requireKey("mintOut", req.MintOut); err != nil {
		return nil, err
	}
	if req.MintIn.Equals(req.MintOut) {
		return nil, newValidationError("mintOut", req.MintOut, "different from mintIn")
	}
	if err := requirePositive("amountIn", req.AmountIn); err != nil {
		return nil, err
	}
	if err := validateSlippage(req.Slippage); err != nil {
		return nil, err
	}

	quote, err := b.quotes.SwapAmountAndFees(ctx, req.PoolName, req.MintIn, req.MintOut, req.AmountIn)
	if err != nil {
		return nil, err
	}
	minOut := types.CalculateMinAmountOut(quote.AmountOut, withDefault(req.Slippage))

	market, err := b.reader.LoadMarket(ctx, req.PoolName, req.MintIn, req.MintOut)
	if err != nil {
		return nil, err
	}

	tx := b.newTx(req.Owner)
	funding, err := b.ensureATA(ctx, tx, req.Owner, req.Owner, req.MintIn)
	if err != nil {
		return nil, err
	}
	receiving, err := b.ensureATA(ctx, tx, req.Owner, req.Owner, req.MintOut)
	if err != nil {
		return nil, err
	}

	ix, err := NewSwapInstruction(b.resolver.ProgramID(), SwapAccounts{
		Owner:                         req.Owner,
		FundingAccount:                funding,
		ReceivingAccount:              receiving,
		TransferAuthority:             b.resolver.TransferAuthority(),
		Perpetuals:                    b.resolver.Perpetuals(),
		Pool:                          market.Pool,
		ReceivingCustody:              market.CustodyOracle(),
		ReceivingCustodyTokenAccount:  b.resolver.CustodyTokenAccount(market.Pool, req.MintIn),
		DispensingCustody:             market.CollateralOracle(),
		DispensingCustodyTokenAccount: b.resolver.CustodyTokenAccount(market.Pool, req.MintOut),
	}, SwapParams{AmountIn: req.AmountIn, MinAmountOut: minOut})
	return b.finish(ctx, "swap", tx, ix, err)
}

// VirtualInstrument - торгуемый инструмент без существующего mint.
// Mint создается в той же транзакции; цена берется из feed FeedID.
type VirtualInstrument struct {
	Decimals uint8
	FeedID   oracle.FeedID
}

// OpenPositionRequest - параметры открытия позиции.
// Если Price == 0, предельная цена выводится из котировки входа с учетом Slippage.
// Для Virtual с пустым Mint котировка невозможна и Price обязателен.
type OpenPositionRequest struct {
	Owner           solana.PublicKey
	PoolName        string
	Mint            solana.PublicKey
	CollateralMint  solana.PublicKey
	Side            Side
	Collateral      uint64
	Size            uint64
	Price           uint64
	Slippage        types.SlippageConfig
	TakeProfitPrice *uint64
	StopLossPrice   *uint64
	Virtual         *VirtualInstrument
}

func (r OpenPositionRequest) validate() error {
	if err := ValidatePoolName(r.PoolName); err != nil {
		return err
	}
	if r.Side != SideLong && r.Side != SideShort {
		return ErrInvalidSide
	}
	if r.Mint.IsZero() && r.Virtual == nil {
		return newValidationError("mint", r.Mint, "set unless a virtual instrument is created")
	}
	if r.Mint.IsZero() && r.Price == 0 {
		return newValidationError("price", r.Price, "set when the instrument mint is created in the same transaction")
	}
	if err := requireKey("collateralMint", r.CollateralMint); err != nil {
		return err
	}
	if err := requirePositive("collateral", r.Collateral); err != nil {
		return err
	}
	if err := requirePositive("size", r.Size); err != nil {
		return err
	}
	return validateSlippage(r.Slippage)
}

// limitPrice - худшая допустимая цена: для long сверху, для short снизу.
func limitPrice(side Side, quoted uint64, cfg types.SlippageConfig) uint64 {
	cfg = withDefault(cfg)
	if side == SideLong {
		return types.CalculateMaxAmountIn(quoted, cfg)
	}
	return types.CalculateMinAmountOut(quoted, cfg)
}

// OpenPosition собирает открытие позиции.
func (b *Builder) OpenPosition(ctx context.Context, req OpenPositionRequest) (*transaction.Unsigned, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	pool, err := b.resolver.Pool(req.PoolName)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(req.Owner)

	var custody, collateral CustodyOracle
	price := req.Price
	mint := req.Mint

	if mint.IsZero() {
		mint, err = b.createMint(ctx, tx, req.Owner, b.resolver.TransferAuthority(), req.Virtual.Decimals)
		if err != nil {
			return nil, err
		}
		feed, err := oracle.FeedAccount(b.feeds.Shard(), req.Virtual.FeedID)
		if err != nil {
			return nil, err
		}
		custody = CustodyOracle{Custody: b.resolver.Custody(pool, mint), Oracle: feed, Twap: feed}

		collKey := b.resolver.Custody(pool, req.CollateralMint)
		collAccount, err := b.reader.GetCustodyAt(ctx, collKey)
		if err != nil {
			return nil, err
		}
		collateral = oracleOf(collKey, collAccount)
	} else {
		market, err := b.reader.LoadMarket(ctx, req.PoolName, mint, req.CollateralMint)
		if err != nil {
			return nil, err
		}
		custody, collateral = market.CustodyOracle(), market.CollateralOracle()

		if price == 0 {
			quote, err := b.quotes.entryPriceAndFee(ctx, market, EntryQuoteRequest{
				PoolName:       req.PoolName,
				Mint:           mint,
				CollateralMint: req.CollateralMint,
				Collateral:     req.Collateral,
				Size:           req.Size,
				Side:           req.Side,
			})
			if err != nil {
				return nil, err
			}
			price = limitPrice(req.Side, quote.EntryPrice, req.Slippage)
			b.logger.Info("Entry quoted",
				zap.String("pool", req.PoolName),
				zap.Stringer("side", req.Side),
				zap.Uint64("entry_price", quote.EntryPrice),
				zap.Uint64("liquidation_price", quote.LiquidationPrice),
				zap.Uint64("fee", quote.Fee),
				zap.Uint64("limit_price", price))
		}
	}

	position, err := b.resolver.Position(req.Owner, pool, custody.Custody, req.Side)
	if err != nil {
		return nil, err
	}
	funding, err := b.ensureATA(ctx, tx, req.Owner, req.Owner, req.CollateralMint)
	if err != nil {
		return nil, err
	}

	ix, err := NewOpenPositionInstruction(b.resolver.ProgramID(), PositionAccounts{
		Owner:                  req.Owner,
		TokenAccount:           funding,
		TransferAuthority:      b.resolver.TransferAuthority(),
		Perpetuals:             b.resolver.Perpetuals(),
		Pool:                   pool,
		Position:               position,
		Custody:                custody,
		CollateralCustody:      collateral,
		CollateralTokenAccount: b.resolver.CustodyTokenAccount(pool, req.CollateralMint),
	}, OpenPositionParams{
		Price:           price,
		Collateral:      req.Collateral,
		Size:            req.Size,
		Side:            req.Side,
		TakeProfitPrice: req.TakeProfitPrice,
		StopLossPrice:   req.StopLossPrice,
	})
	return b.finish(ctx, "openPosition", tx, ix, err)
}

// positionAccounts загружает рынок позиции и собирает общий набор аккаунтов.
// signer - владелец для обычных операций и ликвидатор для liquidate.
func (b *Builder) positionAccounts(ctx context.Context, signer solana.PublicKey, ref PositionRef) (PositionAccounts, error) {
	if err := ValidatePoolName(ref.PoolName); err != nil {
		return PositionAccounts{}, err
	}
	if ref.Side != SideLong && ref.Side != SideShort {
		return PositionAccounts{}, ErrInvalidSide
	}
	market, err := b.reader.LoadMarket(ctx, ref.PoolName, ref.Mint, ref.CollateralMint)
	if err != nil {
		return PositionAccounts{}, err
	}
	position, err := b.resolver.Position(ref.Owner, market.Pool, market.CustodyKey, ref.Side)
	if err != nil {
		return PositionAccounts{}, err
	}
	return PositionAccounts{
		Owner:                  signer,
		TransferAuthority:      b.resolver.TransferAuthority(),
		Perpetuals:             b.resolver.Perpetuals(),
		Pool:                   market.Pool,
		Position:               position,
		Custody:                market.CustodyOracle(),
		CollateralCustody:      market.CollateralOracle(),
		CollateralTokenAccount: b.resolver.CustodyTokenAccount(market.Pool, ref.CollateralMint),
	}, nil
}

// AddCollateral пополняет залог позиции ref.Owner.
func (b *Builder) AddCollateral(ctx context.Context, ref PositionRef, collateral uint64) (*transaction.Unsigned, error) {
	if err := requirePositive("collateral", collateral); err != nil {
		return nil, err
	}
	accounts, err := b.positionAccounts(ctx, ref.Owner, ref)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(ref.Owner)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, ref.Owner, ref.Owner, ref.CollateralMint); err != nil {
		return nil, err
	}
	ix, err := NewAddCollateralInstruction(b.resolver.ProgramID(), accounts, AddCollateralParams{Collateral: collateral})
	return b.finish(ctx, "addCollateral", tx, ix, err)
}

// RemoveCollateral выводит часть залога, сумма задается в USD.
func (b *Builder) RemoveCollateral(ctx context.Context, ref PositionRef, collateralUsd uint64) (*transaction.Unsigned, error) {
	if err := requirePositive("collateralUsd", collateralUsd); err != nil {
		return nil, err
	}
	accounts, err := b.positionAccounts(ctx, ref.Owner, ref)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(ref.Owner)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, ref.Owner, ref.Owner, ref.CollateralMint); err != nil {
		return nil, err
	}
	ix, err := NewRemoveCollateralInstruction(b.resolver.ProgramID(), accounts, RemoveCollateralParams{CollateralUsd: collateralUsd})
	return b.finish(ctx, "removeCollateral", tx, ix, err)
}

// ClosePositionRequest - если Price == 0, предельная цена выхода берется из котировки.
type ClosePositionRequest struct {
	Ref      PositionRef
	Price    uint64
	Slippage types.SlippageConfig
}

// ClosePosition закрывает позицию. Для long худшая цена выхода снизу, для short сверху.
func (b *Builder) ClosePosition(ctx context.Context, req ClosePositionRequest) (*transaction.Unsigned, error) {
	if err := validateSlippage(req.Slippage); err != nil {
		return nil, err
	}
	accounts, err := b.positionAccounts(ctx, req.Ref.Owner, req.Ref)
	if err != nil {
		return nil, err
	}

	price := req.Price
	if price == 0 {
		quote, err := b.quotes.ExitPriceAndFee(ctx, req.Ref)
		if err != nil {
			return nil, err
		}
		exitSide := SideShort
		if req.Ref.Side == SideShort {
			exitSide = SideLong
		}
		price = limitPrice(exitSide, quote.Price, req.Slippage)
		b.logger.Info("Exit quoted",
			zap.String("pool", req.Ref.PoolName),
			zap.Stringer("side", req.Ref.Side),
			zap.Uint64("exit_price", quote.Price),
			zap.Uint64("fee", quote.Fee),
			zap.Uint64("limit_price", price))
	}

	tx := b.newTx(req.Ref.Owner)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, req.Ref.Owner, req.Ref.Owner, req.Ref.CollateralMint); err != nil {
		return nil, err
	}
	ix, err := NewClosePositionInstruction(b.resolver.ProgramID(), accounts, ClosePositionParams{Price: price})
	return b.finish(ctx, "closePosition", tx, ix, err)
}

// Liquidate ликвидирует чужую позицию ref. Остаток залога уходит на ATA владельца,
// вознаграждение - на ATA ликвидатора.
func (b *Builder) Liquidate(ctx context.Context, liquidator solana.PublicKey, ref PositionRef) (*transaction.Unsigned, error) {
	if err := requireKey("owner", ref.Owner); err != nil {
		return nil, err
	}
	accounts, err := b.positionAccounts(ctx, liquidator, ref)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(liquidator)
	if accounts.TokenAccount, err = b.ensureATA(ctx, tx, liquidator, ref.Owner, ref.CollateralMint); err != nil {
		return nil, err
	}
	rewards := accounts.TokenAccount
	if !liquidator.Equals(ref.Owner) {
		if rewards, err = b.ensureATA(ctx, tx, liquidator, liquidator, ref.CollateralMint); err != nil {
			return nil, err
		}
	}
	ix, err := NewLiquidateInstruction(b.resolver.ProgramID(), LiquidateAccounts{
		PositionAccounts:        accounts,
		RewardsReceivingAccount: rewards,
	})
	return b.finish(ctx, "liquidate", tx, ix, err)
}
