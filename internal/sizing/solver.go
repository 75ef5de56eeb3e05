// =============================
// File: internal/sizing/solver.go
// =============================
package sizing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoQualifyingSize - ни один размер в исходном интервале не попал в диапазон плеча.
var ErrNoQualifyingSize = errors.New("no position size satisfies the leverage band")

// Quote - котировка входа для пробного размера, в USD.
type Quote struct {
	EntryPrice decimal.Decimal
	FeeUsd     decimal.Decimal
}

// QuoteFunc котирует открытие позиции размера size (в единицах инструмента).
type QuoteFunc func(ctx context.Context, size decimal.Decimal) (Quote, error)

// Config задает целевой диапазон плеча и точность поиска.
type Config struct {
	// Low и High - замкнутый диапазон эффективного плеча.
	Low  decimal.Decimal
	High decimal.Decimal
	// Tolerance - абсолютная точность по размеру.
	Tolerance decimal.Decimal
	// MaxMultiple - верхняя граница поиска как множитель количества залога.
	MaxMultiple decimal.Decimal
	// MaxIterations ограничивает число котировок.
	MaxIterations int
}

// DefaultConfig возвращает диапазон [1.0, 1.5] с точностью 0.01.
func DefaultConfig() Config {
	return Config{
		Low:           decimal.NewFromInt(1),
		High:          decimal.RequireFromString("1.5"),
		Tolerance:     decimal.RequireFromString("0.01"),
		MaxMultiple:   decimal.NewFromInt(10),
		MaxIterations: 100,
	}
}

// Validate проверяет согласованность параметров.
func (c Config) Validate() error {
	if !c.Low.IsPositive() {
		return fmt.Errorf("leverage band low must be positive, got %s", c.Low)
	}
	if c.High.LessThan(c.Low) {
		return fmt.Errorf("leverage band high (%s) is below low (%s)", c.High, c.Low)
	}
	if !c.Tolerance.IsPositive() {
		return fmt.Errorf("tolerance must be positive, got %s", c.Tolerance)
	}
	if !c.MaxMultiple.IsPositive() {
		return fmt.Errorf("max multiple must be positive, got %s", c.MaxMultiple)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// Request - фиксированный залог, под который подбирается размер.
type Request struct {
	// Collateral - количество залога (UI-единицы), задает верхнюю границу поиска.
	Collateral decimal.Decimal
	// CollateralUsd - стоимость залога в USD, знаменатель плеча.
	CollateralUsd decimal.Decimal
}

// Result - лучший найденный размер и его котировка.
type Result struct {
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	FeeUsd     decimal.Decimal
	Leverage   decimal.Decimal
	Quotes     int
}

// Solver подбирает максимальный размер позиции бисекцией.
// Котировки выполняются последовательно: каждая определяет следующую точку.
type Solver struct {
	cfg    Config
	logger *zap.Logger
}

func NewSolver(cfg Config, logger *zap.Logger) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Solver{cfg: cfg, logger: logger.Named("sizing")}, nil
}

// Leverage - эффективное плечо: notional / (залог - комиссия).
// ok == false, если комиссия съедает весь залог.
func Leverage(size decimal.Decimal, q Quote, collateralUsd decimal.Decimal) (decimal.Decimal, bool) {
	net := collateralUsd.Sub(q.FeeUsd)
	if !net.IsPositive() {
		return decimal.Zero, false
	}
	return size.Mul(q.EntryPrice).Div(net), true
}

type position int

const (
	belowBand position = iota
	inBand
	aboveBand
)

func (s *Solver) classify(lev decimal.Decimal) position {
	switch {
	case lev.LessThan(s.cfg.Low):
		return belowBand
	case lev.GreaterThan(s.cfg.High):
		return aboveBand
	default:
		return inBand
	}
}

// Solve ищет максимальный размер в [0, MaxMultiple*Collateral], при котором
// плечо лежит в [Low, High]. Ошибка котировки трактуется как выход за верхнюю
// границу. Отмена контекста прерывает поиск.
func (s *Solver) Solve(ctx context.Context, req Request, quote QuoteFunc) (*Result, error) {
	if !req.Collateral.IsPositive() {
		return nil, fmt.Errorf("collateral must be positive, got %s", req.Collateral)
	}
	if !req.CollateralUsd.IsPositive() {
		return nil, fmt.Errorf("collateral value must be positive, got %s", req.CollateralUsd)
	}

	start := time.Now()
	two := decimal.NewFromInt(2)
	lo := decimal.Zero
	hi := req.Collateral.Mul(s.cfg.MaxMultiple)

	var best *Result
	quotes := 0
	for hi.Sub(lo).GreaterThan(s.cfg.Tolerance) && quotes < s.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mid := lo.Add(hi).Div(two)
		quotes++

		q, err := quote(ctx, mid)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Debug("Probe rejected, treating as above band",
				zap.String("size", mid.String()),
				zap.Error(err))
			hi = mid
			continue
		}

		lev, ok := Leverage(mid, q, req.CollateralUsd)
		if !ok {
			hi = mid
			continue
		}

		switch s.classify(lev) {
		case inBand:
			best = &Result{Size: mid, EntryPrice: q.EntryPrice, FeeUsd: q.FeeUsd, Leverage: lev}
			lo = mid
		case belowBand:
			lo = mid
		case aboveBand:
			hi = mid
		}
		s.logger.Debug("Probe",
			zap.String("size", mid.String()),
			zap.String("leverage", lev.StringFixed(4)),
			zap.String("lo", lo.String()),
			zap.String("hi", hi.String()))
	}

	if best == nil {
		s.logger.Info("No qualifying size",
			zap.Int("quotes", quotes),
			zap.String("band", fmt.Sprintf("[%s, %s]", s.cfg.Low, s.cfg.High)))
		return nil, ErrNoQualifyingSize
	}

	best.Quotes = quotes
	s.logger.Info("Size found",
		zap.String("size", best.Size.String()),
		zap.String("leverage", best.Leverage.StringFixed(4)),
		zap.String("entry_price", best.EntryPrice.String()),
		zap.Int("quotes", quotes),
		zap.Duration("took", time.Since(start)))
	return best, nil
}
