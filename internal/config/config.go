// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment - кластер, с которым работает клиент.
type Environment string

const (
	Mainnet Environment = "mainnet"
	Devnet  Environment = "devnet"
	Testnet Environment = "testnet"
)

// ParseEnvironment проверяет имя окружения.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case Mainnet, Devnet, Testnet:
		return env, nil
	}
	return "", fmt.Errorf("%w: %q (expected mainnet, devnet or testnet)", ErrInvalidEnvironment, s)
}

var (
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrNoEndpoints        = errors.New("no rpc endpoints configured")
	ErrInvalidURL         = errors.New("invalid RPC URL")
	ErrNoFaucetMint       = errors.New("faucet mint is not configured (set faucet.mint or pass --mint)")
)

type LogConfig struct {
	File        string `mapstructure:"file"`
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
}

// FaucetConfig - программа AUSD faucet и ее mint. Mint пустой, пока не задан.
type FaucetConfig struct {
	ProgramID string `mapstructure:"program_id"`
	Mint      string `mapstructure:"mint"`
}

type RPCURLs struct {
	Mainnet []string `mapstructure:"mainnet"`
	Devnet  []string `mapstructure:"devnet"`
	Testnet []string `mapstructure:"testnet"`
}

type Config struct {
	Environment      Environment   `mapstructure:"environment"`
	KeypairPath      string        `mapstructure:"keypair_path"`
	RPCURLs          RPCURLs       `mapstructure:"rpc_urls"`
	ProgramID        string        `mapstructure:"program_id"`
	ComputeUnitLimit uint32        `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64        `mapstructure:"compute_unit_price"`
	RPCRateLimit     float64       `mapstructure:"rpc_rate_limit"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
	FeedShard        uint16        `mapstructure:"feed_shard"`
	HermesURL        string        `mapstructure:"hermes_url"`
	Faucet           FaucetConfig  `mapstructure:"faucet"`
	Log              LogConfig     `mapstructure:"log"`

	// envOverride - список эндпоинтов из PERPS_RPC_URLS, если задан.
	envOverride []string
}

const (
	DefaultProgramID        = "6RfdxdBjsqLmgBtJizGSAu4NyXTctDGPRYJB8YmeqGio"
	DefaultComputeUnitLimit = 1_000_000
	DefaultConfirmTimeout   = 60 * time.Second
	DefaultHermesURL        = "https://hermes.pyth.network"
	DefaultFaucetProgramID  = "7bQarQwLudufBiKvbMA3RX5zco86TwxiVf9395tiLk8R"
	EnvPrefix               = "PERPS"
)

// DefaultRPCURLs - эндпоинты по умолчанию для каждого окружения, в порядке приоритета.
var DefaultRPCURLs = RPCURLs{
	Mainnet: []string{"https://mainnetbeta-rpc.eclipse.xyz", "https://eclipse.helius-rpc.com"},
	Devnet:  []string{"https://api.devnet.solana.com", "https://devnet.solana.com"},
	Testnet: []string{"https://api.testnet.solana.com", "https://testnet.solana.com"},
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"environment":        string(Testnet),
		"keypair_path":       "",
		"rpc_urls.mainnet":   DefaultRPCURLs.Mainnet,
		"rpc_urls.devnet":    DefaultRPCURLs.Devnet,
		"rpc_urls.testnet":   DefaultRPCURLs.Testnet,
		"program_id":         DefaultProgramID,
		"compute_unit_limit": DefaultComputeUnitLimit,
		"compute_unit_price": 0,
		"rpc_rate_limit":     0,
		"confirm_timeout":    DefaultConfirmTimeout,
		"feed_shard":         0,
		"hermes_url":         DefaultHermesURL,
		"faucet.program_id":  DefaultFaucetProgramID,
		"faucet.mint":        "",
		"log.file":           "logs/perps.log",
		"log.level":          "info",
		"log.development":    false,
		"log.max_size":       50,
		"log.max_age":        28,
		"log.max_backups":    3,
		"log.compress":       true,
	}
}

// DefaultPath возвращает путь к файлу конфигурации в домашнем каталоге пользователя.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "perps.yaml"
	}
	return filepath.Join(dir, "perps", "config.yaml")
}

// Manager хранит viper-экземпляр, чтобы изменения можно было записать обратно.
type Manager struct {
	v    *viper.Viper
	path string
}

// Load читает .env, затем файл конфигурации (если он есть), затем переменные
// окружения с префиксом PERPS. Отсутствующий файл не ошибка: работают значения по умолчанию.
func Load(path string) (*Manager, *Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	m := &Manager{v: v, path: path}
	cfg, err := m.Config()
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// Config разбирает текущее состояние и проверяет его.
func (m *Manager) Config() (*Config, error) {
	loadEnvironmentVariables(m.v)

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.envOverride = splitList(m.v.GetString("RPC_URLS"))
	return &cfg, validateConfig(&cfg)
}

// Path - файл, в который пишет Save.
func (m *Manager) Path() string { return m.path }

// Set меняет значение ключа в памяти; Save сохраняет его.
func (m *Manager) Set(key string, value interface{}) {
	m.v.Set(key, value)
}

// Save записывает конфигурацию в файл, создавая каталог при необходимости.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := m.v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", m.path, err)
	}
	return nil
}

// Endpoints возвращает упорядоченный список RPC для окружения.
// PERPS_RPC_URLS имеет приоритет над файлом.
func (c *Config) Endpoints(env Environment) []string {
	if len(c.envOverride) > 0 {
		return c.envOverride
	}
	switch env {
	case Mainnet:
		return c.RPCURLs.Mainnet
	case Devnet:
		return c.RPCURLs.Devnet
	default:
		return c.RPCURLs.Testnet
	}
}

// FaucetProgram возвращает адрес программы faucet.
func (c *Config) FaucetProgram() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.Faucet.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid faucet.program_id %q: %w", c.Faucet.ProgramID, err)
	}
	return pk, nil
}

// FaucetMint возвращает mint faucet; explicit имеет приоритет над конфигом.
func (c *Config) FaucetMint(explicit string) (solana.PublicKey, error) {
	raw := strings.TrimSpace(explicit)
	if raw == "" {
		raw = strings.TrimSpace(c.Faucet.Mint)
	}
	if raw == "" {
		return solana.PublicKey{}, ErrNoFaucetMint
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid faucet mint %q: %w", raw, err)
	}
	return pk, nil
}

// Program возвращает адрес программы.
func (c *Config) Program() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id %q: %w", c.ProgramID, err)
	}
	return pk, nil
}

func validateConfig(cfg *Config) error {
	env, err := ParseEnvironment(string(cfg.Environment))
	if err != nil {
		return err
	}
	cfg.Environment = env

	endpoints := cfg.Endpoints(env)
	if len(endpoints) == 0 {
		return fmt.Errorf("%w for %s", ErrNoEndpoints, env)
	}
	for _, rpcURL := range endpoints {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidURL, rpcURL, err)
		}
	}
	if _, err := cfg.Program(); err != nil {
		return err
	}
	if _, err := cfg.FaucetProgram(); err != nil {
		return err
	}
	if cfg.ComputeUnitLimit == 0 {
		return errors.New("invalid compute_unit_limit")
	}
	if cfg.RPCRateLimit < 0 {
		return errors.New("invalid rpc_rate_limit")
	}
	if cfg.ConfirmTimeout < 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.HermesURL != "" {
		if err := validateURLWithCache(cfg.HermesURL, "http"); err != nil {
			return fmt.Errorf("invalid hermes_url: %w", err)
		}
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
