// internal/monitor/alerts.go
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertType - вид сработавшего условия.
type AlertType string

const (
	AlertTypeLiquidatable    AlertType = "liquidatable"
	AlertTypeNearLiquidation AlertType = "near_liquidation"
	AlertTypeProfitTarget    AlertType = "profit_target"
	AlertTypeLossLimit       AlertType = "loss_limit"
	AlertTypeStale           AlertType = "stale_position"
)

// Severity алерта.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert - сработавший алерт по позиции.
type Alert struct {
	ID        string          `json:"id"`
	Type      AlertType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Position  string          `json:"position"`
	Market    string          `json:"market"`
	Message   string          `json:"message"`
	Severity  Severity        `json:"severity"`
	Value     decimal.Decimal `json:"value"`
	Threshold decimal.Decimal `json:"threshold"`
}

// AlertConfig - пороги в процентах; нулевой порог отключает проверку.
type AlertConfig struct {
	// NearLiquidationPercent - минимальное расстояние до цены ликвидации.
	NearLiquidationPercent decimal.Decimal
	// ProfitTargetPercent и LossLimitPercent считаются от залога.
	ProfitTargetPercent decimal.Decimal
	LossLimitPercent    decimal.Decimal
	// StaleAfter - снимок старше этого считается устаревшим.
	StaleAfter time.Duration
	// Cooldown - пауза между алертами одного типа по одной позиции.
	Cooldown time.Duration
}

// DefaultAlertConfig: 5% до ликвидации, +50% / -20% от залога.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		NearLiquidationPercent: decimal.NewFromInt(5),
		ProfitTargetPercent:    decimal.NewFromInt(50),
		LossLimitPercent:       decimal.NewFromInt(20),
		StaleAfter:             2 * time.Minute,
		Cooldown:               5 * time.Minute,
	}
}

// AlertHandler вызывается синхронно для каждого алерта.
type AlertHandler func(alert Alert)

// AlertManager проверяет снимки позиций и хранит последние алерты.
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger
	now    func() time.Time

	alerts    []Alert
	maxAlerts int
	// position/type -> время последнего алерта
	lastFired map[string]time.Time

	handlers []AlertHandler
}

func NewAlertManager(config AlertConfig, logger *zap.Logger) *AlertManager {
	return &AlertManager{
		config:    config,
		logger:    logger.Named("alerts"),
		now:       time.Now,
		alerts:    make([]Alert, 0, 16),
		maxAlerts: 1000,
		lastFired: make(map[string]time.Time),
	}
}

func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Check проверяет снимок и возвращает сработавшие алерты (с учетом cooldown).
func (am *AlertManager) Check(s Snapshot) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := am.now()
	var triggered []Alert
	fire := func(t AlertType, sev Severity, value, threshold decimal.Decimal, msg string) {
		key := s.Address + "/" + string(t)
		if last, ok := am.lastFired[key]; ok && now.Sub(last) < am.config.Cooldown {
			return
		}
		am.lastFired[key] = now
		alert := Alert{
			ID:        uuid.NewString(),
			Type:      t,
			Timestamp: now,
			Position:  s.Address,
			Market:    s.Market,
			Message:   msg,
			Severity:  sev,
			Value:     value,
			Threshold: threshold,
		}
		triggered = append(triggered, alert)
		am.record(alert)
	}

	if s.Liquidatable {
		fire(AlertTypeLiquidatable, SeverityCritical, decimal.Zero, decimal.Zero,
			fmt.Sprintf("%s %s can be liquidated", s.Side, s.Market))
	} else if dist, ok := s.LiquidationDistance(); ok && am.config.NearLiquidationPercent.IsPositive() &&
		dist.LessThan(am.config.NearLiquidationPercent) {
		fire(AlertTypeNearLiquidation, SeverityWarning, dist, am.config.NearLiquidationPercent,
			fmt.Sprintf("%s %s is %s%% from liquidation at $%s", s.Side, s.Market, dist.StringFixed(2), s.LiquidationPrice))
	}

	pct := s.PnLPercent()
	if am.config.ProfitTargetPercent.IsPositive() && pct.GreaterThanOrEqual(am.config.ProfitTargetPercent) {
		fire(AlertTypeProfitTarget, SeverityInfo, pct, am.config.ProfitTargetPercent,
			fmt.Sprintf("%s %s reached +%s%% of collateral", s.Side, s.Market, pct.StringFixed(1)))
	}
	if am.config.LossLimitPercent.IsPositive() && pct.LessThanOrEqual(am.config.LossLimitPercent.Neg()) {
		fire(AlertTypeLossLimit, SeverityCritical, pct, am.config.LossLimitPercent.Neg(),
			fmt.Sprintf("%s %s lost %s%% of collateral", s.Side, s.Market, pct.Neg().StringFixed(1)))
	}

	if am.config.StaleAfter > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > am.config.StaleAfter {
		fire(AlertTypeStale, SeverityInfo, decimal.Zero, decimal.Zero,
			fmt.Sprintf("%s %s not refreshed for %s", s.Side, s.Market, now.Sub(s.UpdatedAt).Truncate(time.Second)))
	}
	return triggered
}

// record сохраняет алерт, логирует его и вызывает обработчики. Вызывается под mu.
func (am *AlertManager) record(alert Alert) {
	if len(am.alerts) >= am.maxAlerts {
		am.alerts = am.alerts[1:]
	}
	am.alerts = append(am.alerts, alert)

	fields := []zap.Field{
		zap.String("type", string(alert.Type)),
		zap.String("position", alert.Position),
		zap.String("message", alert.Message),
	}
	switch alert.Severity {
	case SeverityCritical:
		am.logger.Error("Alert triggered", fields...)
	case SeverityWarning:
		am.logger.Warn("Alert triggered", fields...)
	default:
		am.logger.Info("Alert triggered", fields...)
	}

	for _, handler := range am.handlers {
		handler(alert)
	}
}

// Recent возвращает до limit последних алертов; limit <= 0 - все.
func (am *AlertManager) Recent(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	out := make([]Alert, limit)
	copy(out, am.alerts[len(am.alerts)-limit:])
	return out
}

// ClearHistory сбрасывает cooldown.
func (am *AlertManager) ClearHistory() {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.lastFired = make(map[string]time.Time)
}
