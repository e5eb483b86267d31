// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPCURL       string   `mapstructure:"rpc_url"`
	WebSocketURL string   `mapstructure:"websocket_url"`
	PrivateKey   string   `mapstructure:"private_key"`
	Wallets      []string `mapstructure:"wallets"`

	// Protocol preference: "pumpfun", "pumpswap", "raydium" or "auto" to
	// mirror whatever protocol the observed trade used.
	Protocol string `mapstructure:"protocol"`

	// ExposureRatio scales the observed spend when sizing a mirrored buy.
	ExposureRatio float64 `mapstructure:"exposure_ratio"`
	// MaxTradeSOL caps a single mirrored buy.
	MaxTradeSOL float64 `mapstructure:"max_trade_sol"`
	// MinTradeSOL filters out observed trades too small to mirror.
	MinTradeSOL float64 `mapstructure:"min_trade_sol"`
	// MaxTrades is the session trade ceiling; 0 means unlimited.
	MaxTrades int64 `mapstructure:"max_trades"`

	SlippageBps    uint64 `mapstructure:"slippage_bps"`
	PriorityFee    uint64 `mapstructure:"priority_fee"` // microlamports per CU
	ComputeUnits   uint32 `mapstructure:"compute_units"`
	Retries        int    `mapstructure:"retries"`
	ConfirmTimeout int    `mapstructure:"confirm_timeout"` // seconds

	MonitorInterval int    `mapstructure:"monitor_interval"` // seconds
	DustThreshold   uint64 `mapstructure:"dust_threshold"`   // token base units

	QueueSize    int    `mapstructure:"queue_size"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
	WebhookURL   string `mapstructure:"webhook_url"`
	PostgresURL  string `mapstructure:"postgres_url"`

	monitored map[solana.PublicKey]struct{}
}

const (
	DefaultProtocol        = "auto"
	DefaultExposureRatio   = 0.1
	DefaultMaxTradeSOL     = 0.5
	DefaultSlippageBps     = 500
	DefaultRetries         = 3
	DefaultConfirmTimeout  = 30
	DefaultMonitorInterval = 30
	DefaultDustThreshold   = 1000
	DefaultQueueSize       = 256
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"protocol":         DefaultProtocol,
		"exposure_ratio":   DefaultExposureRatio,
		"max_trade_sol":    DefaultMaxTradeSOL,
		"slippage_bps":     DefaultSlippageBps,
		"retries":          DefaultRetries,
		"confirm_timeout":  DefaultConfirmTimeout,
		"monitor_interval": DefaultMonitorInterval,
		"dust_threshold":   DefaultDustThreshold,
		"queue_size":       DefaultQueueSize,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// MonitoredWallets returns the parsed monitored wallet set.
func (c *Config) MonitoredWallets() map[solana.PublicKey]struct{} {
	return c.monitored
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if cfg.WebSocketURL == "" {
		return errors.New("missing websocket_url in configuration")
	}
	if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
		return errors.New("invalid WebSocket URL protocol")
	}
	if cfg.PrivateKey == "" {
		return errors.New("missing private_key in configuration")
	}

	if len(cfg.Wallets) == 0 {
		return errors.New("wallets is empty: at least one monitored wallet is required")
	}
	cfg.monitored = make(map[solana.PublicKey]struct{}, len(cfg.Wallets))
	for _, w := range cfg.Wallets {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(w))
		if err != nil {
			return fmt.Errorf("invalid monitored wallet %q: %w", w, err)
		}
		cfg.monitored[pk] = struct{}{}
	}

	switch cfg.Protocol {
	case "auto", "pumpfun", "pumpswap", "raydium":
	default:
		return fmt.Errorf("invalid protocol %q", cfg.Protocol)
	}

	if err := validateNumericParams(cfg); err != nil {
		return err
	}

	if cfg.WebhookURL != "" {
		if err := validateURLWithCache(cfg.WebhookURL, "http"); err != nil {
			return errors.New("invalid webhook URL")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.ExposureRatio <= 0 {
		return errors.New("invalid exposure_ratio")
	}
	if cfg.MaxTradeSOL <= 0 {
		return errors.New("invalid max_trade_sol")
	}
	if cfg.MinTradeSOL < 0 {
		return errors.New("invalid min_trade_sol")
	}
	if cfg.MaxTrades < 0 {
		return errors.New("invalid max_trades")
	}
	if cfg.SlippageBps == 0 || cfg.SlippageBps > 10_000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval")
	}
	if cfg.QueueSize <= 0 {
		return errors.New("invalid queue_size")
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
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("MIRROR_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envKey := v.GetString("PRIVATE_KEY"); envKey != "" {
		cfg.PrivateKey = envKey
	}
	if envRPC := v.GetString("RPC_URL"); envRPC != "" {
		cfg.RPCURL = envRPC
	}
	if envWS := v.GetString("WEBSOCKET_URL"); envWS != "" {
		cfg.WebSocketURL = envWS
	}

	if envWallets := v.GetString("WALLETS"); envWallets != "" {
		parts := strings.Split(envWallets, ",")
		var clean []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				clean = append(clean, s)
			}
		}
		if len(clean) > 0 {
			cfg.Wallets = clean
		}
	}
	return nil
}
