package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"nft-escrow-market/core/model"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
)

// Config holds the marketplace process configuration.
type Config struct {
	HTTPAddr string `env:"MARKET_HTTP_ADDR" envDefault:":8080"`

	// deployment of the local marketplace and its first collection
	Deployer       string `env:"MARKET_DEPLOYER" envDefault:"0x00000000000000000000000000000000000000d0"`
	FeeAccount     string `env:"MARKET_FEE_ACCOUNT"`
	FeePercent     uint64 `env:"MARKET_FEE_PERCENT" envDefault:"1"`
	CollectionName string `env:"MARKET_COLLECTION_NAME" envDefault:"SCVNGR HNT"`
	Symbol         string `env:"MARKET_COLLECTION_SYMBOL" envDefault:"SCVT"`
	Faucet         bool   `env:"MARKET_FAUCET"`

	// remote chain; when empty the local executor is indexed
	ChainURL     string        `env:"CHAIN_URL"`
	RemoteMarket string        `env:"MARKET_REMOTE_ADDRESS"`
	StartBlock   uint64        `env:"MARKET_START_BLOCK"`
	PollInterval time.Duration `env:"MARKET_POLL_INTERVAL" envDefault:"3s"`

	DatabaseDSN string `env:"MARKET_DATABASE_DSN"`
	LogLevel    string `env:"MARKET_LOG_LEVEL" envDefault:"info"`
	LogJSON     bool   `env:"MARKET_LOG_JSON"`
}

// Load reads the environment and then lets flags override it.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.Deployer, "deployer", cfg.Deployer, "account that deploys the marketplace and collection")
	fs.StringVar(&cfg.FeeAccount, "fee-account", cfg.FeeAccount, "fee recipient, defaults to the deployer")
	fs.Uint64Var(&cfg.FeePercent, "fee-percent", cfg.FeePercent, "marketplace fee in whole percent")
	fs.StringVar(&cfg.CollectionName, "collection-name", cfg.CollectionName, "name of the collection deployed at start")
	fs.StringVar(&cfg.Symbol, "collection-symbol", cfg.Symbol, "symbol of the collection deployed at start")
	fs.BoolVar(&cfg.Faucet, "faucet", cfg.Faucet, "enable the account faucet endpoint")
	fs.StringVar(&cfg.ChainURL, "chain-url", cfg.ChainURL, "remote node to index instead of the local executor")
	fs.StringVar(&cfg.RemoteMarket, "remote-market", cfg.RemoteMarket, "marketplace address on the remote chain")
	fs.Uint64Var(&cfg.StartBlock, "start-block", cfg.StartBlock, "index blocks after this one")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "delay between chain polls")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "postgres DSN for the listing history, in memory when empty")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "logrus level")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if !common.IsHexAddress(cfg.Deployer) {
		return fmt.Errorf("%w: deployer %q", ErrInvalidAddress, cfg.Deployer)
	}
	if cfg.FeeAccount != "" && !common.IsHexAddress(cfg.FeeAccount) {
		return fmt.Errorf("%w: fee account %q", ErrInvalidAddress, cfg.FeeAccount)
	}
	if cfg.ChainURL != "" && !common.IsHexAddress(cfg.RemoteMarket) {
		return fmt.Errorf("%w: remote market %q", ErrInvalidAddress, cfg.RemoteMarket)
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func (cfg Config) DeployerAddress() common.Address {
	return common.HexToAddress(cfg.Deployer)
}

// FeePolicy is the policy the local marketplace is deployed with. An empty fee
// account is left zero so the deployer receives the fees.
func (cfg Config) FeePolicy() model.FeePolicy {
	policy := model.FeePolicy{FeePercent: cfg.FeePercent}
	if cfg.FeeAccount != "" {
		policy.FeeAccount = common.HexToAddress(cfg.FeeAccount)
	}
	return policy
}

// Remote reports whether blocks come from a remote node.
func (cfg Config) Remote() bool {
	return cfg.ChainURL != ""
}

// ConfigureLogging applies the log level and format to the standard logrus logger.
func (cfg Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
