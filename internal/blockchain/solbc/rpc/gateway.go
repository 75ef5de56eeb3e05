// internal/blockchain/solbc/rpc/gateway.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/perps-client/internal/utils/metrics"
)

// Dialer создает новое соединение с эндпоинтом. Вызывается на каждую попытку,
// после попытки клиент закрывается.
type Dialer func(endpoint string) *solanarpc.Client

// DialFresh - Dialer по умолчанию. У клиента собственный транспорт без
// keep-alive: соединение не переживает попытку и не остается в idle-пуле.
// solanarpc.New для этого не подходит: его транспорт обернут в gzhttp,
// и Close не закрывает idle-соединения.
func DialFresh(endpoint string) *solanarpc.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return solanarpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Transport: transport},
	}))
}

// Gateway выполняет RPC-вызовы по упорядоченному набору эндпоинтов.
// Попытки идут строго последовательно и без задержки между эндпоинтами.
type Gateway struct {
	urls    []string
	dial    Dialer
	limiter *rate.Limiter
	metrics *metrics.RPCMetrics
	logger  *zap.Logger
}

// Option настраивает Gateway.
type Option func(*Gateway)

// WithDialer подменяет фабрику соединений (используется в тестах).
func WithDialer(d Dialer) Option {
	return func(g *Gateway) { g.dial = d }
}

// WithRateLimit ограничивает число логических вызовов в секунду.
// Ожидание происходит один раз перед вызовом, не между попытками failover.
func WithRateLimit(perSecond float64) Option {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMetrics подключает prometheus-метрики попыток.
func WithMetrics(m *metrics.RPCMetrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway создает gateway для непустого набора эндпоинтов.
func NewGateway(urls []string, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	clean := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
		}
		clean = append(clean, raw)
	}

	g := &Gateway{
		urls:   clean,
		dial:   DialFresh,
		logger: logger.Named("rpc-gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// URLs возвращает копию набора эндпоинтов.
func (g *Gateway) URLs() []string {
	out := make([]string, len(g.urls))
	copy(out, g.urls)
	return out
}

// Primary возвращает первый эндпоинт набора.
func (g *Gateway) Primary() string {
	return g.urls[0]
}

// failover пробует fn на каждом эндпоинте по порядку и возвращает первый успех.
// Ответ rpc.ErrNotFound считается успешным ответом провайдера и не приводит к переключению.
func failover[T any](ctx context.Context, g *Gateway, method string, fn func(*solanarpc.Client) (T, error)) (T, error) {
	var zero T

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	var lastErr error
	lastURL := ""
	for _, endpoint := range g.urls {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		client := g.dial(endpoint)
		start := time.Now()
		result, err := fn(client)
		g.metrics.ObserveAttempt(method, endpoint, time.Since(start), err)
		_ = client.Close()

		if err == nil || errors.Is(err, solanarpc.ErrNotFound) {
			return result, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		g.logger.Warn("RPC attempt failed, trying next endpoint",
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Error(err))

		lastErr = NewError(err, endpoint, method)
		lastURL = endpoint
	}

	g.metrics.ObserveExhausted(method)
	return zero, &AggregateError{
		Method:   method,
		LastURL:  lastURL,
		Attempts: len(g.urls),
		Err:      lastErr,
	}
}

func (g *Gateway) GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
	return failover(ctx, g, "getLatestBlockhash", func(c *solanarpc.Client) (*solanarpc.GetLatestBlockhashResult, error) {
		return c.GetLatestBlockhash(ctx, commitment)
	})
}

func (g *Gateway) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *solanarpc.GetAccountInfoOpts) (*solanarpc.GetAccountInfoResult, error) {
	return failover(ctx, g, "getAccountInfo", func(c *solanarpc.Client) (*solanarpc.GetAccountInfoResult, error) {
		return c.GetAccountInfoWithOpts(ctx, account, opts)
	})
}

func (g *Gateway) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *solanarpc.GetMultipleAccountsOpts) (*solanarpc.GetMultipleAccountsResult, error) {
	return failover(ctx, g, "getMultipleAccounts", func(c *solanarpc.Client) (*solanarpc.GetMultipleAccountsResult, error) {
		return c.GetMultipleAccountsWithOpts(ctx, accounts, opts)
	})
}

func (g *Gateway) GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
	return failover(ctx, g, "getProgramAccounts", func(c *solanarpc.Client) (solanarpc.GetProgramAccountsResult, error) {
		return c.GetProgramAccountsWithOpts(ctx, program, opts)
	})
}

func (g *Gateway) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment solanarpc.CommitmentType) (uint64, error) {
	return failover(ctx, g, "getMinimumBalanceForRentExemption", func(c *solanarpc.Client) (uint64, error) {
		return c.GetMinimumBalanceForRentExemption(ctx, dataSize, commitment)
	})
}

func (g *Gateway) GetBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetBalanceResult, error) {
	return failover(ctx, g, "getBalance", func(c *solanarpc.Client) (*solanarpc.GetBalanceResult, error) {
		return c.GetBalance(ctx, account, commitment)
	})
}

func (g *Gateway) GetSignatureStatuses(ctx context.Context, searchHistory bool, signatures ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
	return failover(ctx, g, "getSignatureStatuses", func(c *solanarpc.Client) (*solanarpc.GetSignatureStatusesResult, error) {
		return c.GetSignatureStatuses(ctx, searchHistory, signatures...)
	})
}

// SimulateTransactionWithOpts безопасна для failover: симуляция не меняет состояние.
func (g *Gateway) SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *solanarpc.SimulateTransactionOpts) (*solanarpc.SimulateTransactionResponse, error) {
	return failover(ctx, g, "simulateTransaction", func(c *solanarpc.Client) (*solanarpc.SimulateTransactionResponse, error) {
		return c.SimulateTransactionWithOpts(ctx, tx, opts)
	})
}

// SendTransactionWithOpts отправляет транзакцию один раз через основной эндпоинт.
// Повтор на другом провайдере мог бы привести к двойной отправке.
func (g *Gateway) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return solana.Signature{}, err
		}
	}

	endpoint := g.Primary()
	start := time.Now()
	client := g.dial(endpoint)
	defer client.Close()
	sig, err := client.SendTransactionWithOpts(ctx, tx, opts)
	g.metrics.ObserveAttempt("sendTransaction", endpoint, time.Since(start), err)
	if err != nil {
		return solana.Signature{}, NewError(err, endpoint, "sendTransaction")
	}
	return sig, nil
}
