// internal/monitor/watcher.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FetchFunc загружает текущее состояние позиции.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// UpdateFunc получает каждый успешный снимок и сработавшие по нему алерты.
type UpdateFunc func(s Snapshot, alerts []Alert)

// WatcherConfig - параметры опроса.
type WatcherConfig struct {
	Interval time.Duration
	// FetchTimeout ограничивает один опрос.
	FetchTimeout time.Duration
	// MaxFailures - число подряд неудачных опросов до остановки; 0 - без ограничения.
	MaxFailures int
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Interval:     10 * time.Second,
		FetchTimeout: 30 * time.Second,
		MaxFailures:  5,
	}
}

// Watcher периодически опрашивает позицию и прогоняет снимки через AlertManager.
type Watcher struct {
	cfg    WatcherConfig
	fetch  FetchFunc
	alerts *AlertManager
	logger *zap.Logger
}

func NewWatcher(cfg WatcherConfig, fetch FetchFunc, alerts *AlertManager, logger *zap.Logger) (*Watcher, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("watch interval must be positive, got %s", cfg.Interval)
	}
	if fetch == nil {
		return nil, errors.New("fetch func is required")
	}
	return &Watcher{cfg: cfg, fetch: fetch, alerts: alerts, logger: logger.Named("watcher")}, nil
}

// Run опрашивает сразу и затем по таймеру до отмены ctx. Отмена - штатное
// завершение (nil). Ошибка возвращается после MaxFailures неудач подряд.
func (w *Watcher) Run(ctx context.Context, onUpdate UpdateFunc) error {
	w.logger.Info("Starting position watch", zap.Duration("interval", w.cfg.Interval))

	failures := 0
	poll := func() error {
		err := w.poll(ctx, onUpdate)
		if err == nil {
			failures = 0
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		failures++
		w.logger.Warn("Position poll failed", zap.Int("failures", failures), zap.Error(err))
		if w.cfg.MaxFailures > 0 && failures >= w.cfg.MaxFailures {
			return fmt.Errorf("position watch stopped after %d failed polls: %w", failures, err)
		}
		return nil
	}

	if err := poll(); err != nil {
		return err
	}
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Position watch stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := poll(); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context, onUpdate UpdateFunc) error {
	fetchCtx := ctx
	if w.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, w.cfg.FetchTimeout)
		defer cancel()
	}
	s, err := w.fetch(fetchCtx)
	if err != nil {
		return err
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	var fired []Alert
	if w.alerts != nil {
		fired = w.alerts.Check(s)
	}
	if onUpdate != nil {
		onUpdate(s, fired)
	}
	return nil
}
