// internal/cli/app.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/assets"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solbc"
	gateway "github.com/rovshanmuradov/perps-client/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/perps-client/internal/config"
	"github.com/rovshanmuradov/perps-client/internal/faucet"
	"github.com/rovshanmuradov/perps-client/internal/oracle"
	"github.com/rovshanmuradov/perps-client/internal/perpetuals"
	"github.com/rovshanmuradov/perps-client/internal/types"
	"github.com/rovshanmuradov/perps-client/internal/ui/component"
	"github.com/rovshanmuradov/perps-client/internal/utils/logger"
	"github.com/rovshanmuradov/perps-client/internal/utils/metrics"
	"github.com/rovshanmuradov/perps-client/internal/wallet"
)

// globalFlags - persistent-флаги корневой команды.
type globalFlags struct {
	environment string
	keypair     string
	configPath  string
	yes         bool
	priority    string
	metricsFile string
}

// app держит все, что команды создают лениво: конфигурацию, логгер,
// RPC-клиент, кошелек и клиентов программы.
type app struct {
	flags    globalFlags
	out      io.Writer
	prompter component.Prompter

	manager *config.Manager
	cfg     *config.Config
	env     config.Environment
	log     *logger.Logger

	registry   *prometheus.Registry
	rpcMetrics *metrics.RPCMetrics
	txMetrics  *metrics.TxMetrics

	client  *solbc.Client
	reader  *perpetuals.Reader
	quotes  *perpetuals.QuoteClient
	builder *perpetuals.Builder
	wallet  *wallet.Wallet

	catalog *assets.Directory
	tokens  *solbc.TokenMetadataCache
	hermes  *oracle.HermesClient
}

func newApp(out io.Writer, prompter component.Prompter) *app {
	registry := prometheus.NewRegistry()
	return &app{
		out:        out,
		prompter:   prompter,
		registry:   registry,
		rpcMetrics: metrics.NewRPCMetrics(registry),
		txMetrics:  metrics.NewTxMetrics(registry),
	}
}

// load читает конфигурацию и поднимает логгер. Флаги командной строки
// перекрывают значения из файла и окружения.
func (a *app) load() error {
	path := a.flags.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	manager, cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.manager, a.cfg = manager, cfg

	a.env = cfg.Environment
	if a.flags.environment != "" {
		if a.env, err = config.ParseEnvironment(a.flags.environment); err != nil {
			return err
		}
	}
	if a.flags.keypair != "" {
		a.cfg.KeypairPath = a.flags.keypair
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.Log.File
	logCfg.Level = cfg.Log.Level
	logCfg.Development = cfg.Log.Development
	logCfg.MaxSize = cfg.Log.MaxSize
	logCfg.MaxAge = cfg.Log.MaxAge
	logCfg.MaxBackups = cfg.Log.MaxBackups
	logCfg.Compress = cfg.Log.Compress
	if a.log, err = logger.New(logCfg); err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if a.catalog, err = assets.Default(); err != nil {
		return err
	}
	a.hermes = oracle.NewHermesClient(cfg.HermesURL, a.log.Logger)
	return nil
}

func (a *app) logger() *zap.Logger {
	if a.log == nil {
		return zap.NewNop()
	}
	return a.log.Logger
}

// connect создает шлюз, RPC-клиент и reader программы.
func (a *app) connect() (*perpetuals.Reader, error) {
	if a.reader != nil {
		return a.reader, nil
	}
	programID, err := a.cfg.Program()
	if err != nil {
		return nil, err
	}
	gw, err := gateway.NewGateway(a.cfg.Endpoints(a.env), a.logger(),
		gateway.WithRateLimit(a.cfg.RPCRateLimit),
		gateway.WithMetrics(a.rpcMetrics),
	)
	if err != nil {
		return nil, err
	}
	a.client = solbc.NewClient(gw, a.logger())
	a.client.SetConfirmTimeout(a.cfg.ConfirmTimeout)
	a.tokens = solbc.NewTokenMetadataCache(a.logger())
	a.reader = perpetuals.NewReader(a.client, perpetuals.NewResolver(programID), a.logger())

	a.logger().Debug("Connected",
		zap.String("environment", string(a.env)),
		zap.String("primary", gw.Primary()),
		zap.Stringer("program", programID))
	return a.reader, nil
}

// signer загружает кошелек из keypair_path.
func (a *app) signer() (*wallet.Wallet, error) {
	if a.wallet != nil {
		return a.wallet, nil
	}
	w, err := wallet.Load(a.cfg.KeypairPath)
	if err != nil {
		return nil, err
	}
	w.SetMetrics(a.txMetrics)
	a.wallet = w
	return w, nil
}

// trader готовит клиента котировок и билдер. Котировки симулируются
// от имени кошелька, поэтому он нужен и для read-only запросов к view-инструкциям.
func (a *app) trader() (*perpetuals.Builder, error) {
	if a.builder != nil {
		return a.builder, nil
	}
	reader, err := a.connect()
	if err != nil {
		return nil, err
	}
	w, err := a.signer()
	if err != nil {
		return nil, err
	}
	budget, err := a.budget()
	if err != nil {
		return nil, err
	}

	a.quotes = perpetuals.NewQuoteClient(a.client, reader, w.PublicKey, a.logger())
	a.builder = perpetuals.NewBuilder(a.client, reader, a.quotes,
		oracle.NewFeedResolver(a.cfg.FeedShard), budget, a.logger())
	return a.builder, nil
}

// budget - compute budget из конфига с поправкой на --priority.
func (a *app) budget() (computebudget.Config, error) {
	level, err := types.ParsePriorityLevel(a.flags.priority)
	if err != nil {
		return computebudget.Config{}, err
	}
	return level.Apply(computebudget.Config{
		Units:     a.cfg.ComputeUnitLimit,
		UnitPrice: a.cfg.ComputeUnitPrice,
	}), nil
}

// faucetBuilder готовит билдер faucet для mint из --mint или faucet.mint.
// Кошелек не загружается: show работает без него.
func (a *app) faucetBuilder(mintFlag string) (*faucet.Builder, error) {
	mint, err := a.cfg.FaucetMint(mintFlag)
	if err != nil {
		return nil, err
	}
	programID, err := a.cfg.FaucetProgram()
	if err != nil {
		return nil, err
	}
	if _, err := a.connect(); err != nil {
		return nil, err
	}
	budget, err := a.budget()
	if err != nil {
		return nil, err
	}
	return faucet.NewBuilder(a.client, programID, mint, budget, a.logger())
}

func (a *app) quoteClient() (*perpetuals.QuoteClient, error) {
	if _, err := a.trader(); err != nil {
		return nil, err
	}
	return a.quotes, nil
}

// owner - явно заданный адрес или публичный ключ кошелька.
func (a *app) owner(explicit string) (solana.PublicKey, error) {
	if explicit != "" {
		return solana.PublicKeyFromBase58(explicit)
	}
	w, err := a.signer()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return w.PublicKey, nil
}

// shutdown сбрасывает логгер и, если задан --metrics-file, пишет метрики
// в формате textfile collector.
func (a *app) shutdown() error {
	var errs []error
	if a.flags.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.flags.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.log != nil {
		if err := a.log.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// signalContext отменяет контекст по SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
