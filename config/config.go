// Package config loads satindex's runtime configuration: a single nested
// struct unmarshalled from a YAML file by viper, matching the teacher's
// own config.go discovery convention (explicit path, else executable
// directory, else current directory).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConfigName  = "ordinals"
	defaultConfigType  = "yml"
	defaultDataDirname = "data"
	defaultLogDirname  = "logs"
	defaultLogLevel    = "info"

	// DefaultBatchSize is the coordinator's default blocks-per-transaction
	// (§4.F: "default order of hundreds of blocks").
	DefaultBatchSize = 200
	// DefaultUndoHorizon retains roughly two days of mainnet blocks of undo
	// log before pruning (§4.F).
	DefaultUndoHorizon = 288
)

// Config is satindex's full runtime configuration. Unlike the teacher's
// Config, there is no Mining or peer-networking sub-struct: those
// concerns belong to the full node satindex only consumes, never runs.
type Config struct {
	// Chain selects the network satindex is indexing: main, test, signet
	// or regtest (§6). It picks chaincfg's subsidy schedule, first-serial
	// offset and expected genesis hash; the node RPC client never sees it.
	Chain string `mapstructure:"chain"`

	DataDir string `mapstructure:"dataDir"`
	LogDir  string `mapstructure:"logDir"`
	LogLevel string `mapstructure:"logLevel"`

	Node struct {
		// RPCHost is host:port of the upstream node's JSON-RPC endpoint
		// (§4.F's Source is built over this).
		RPCHost string `mapstructure:"rpcHost"`
		RPCUser string `mapstructure:"rpcUser"`
		RPCPass string `mapstructure:"rpcPass"`
		// CookiePath, when set, is read instead of RPCUser/RPCPass (the
		// node's cookie-file auth, as bitcoind itself supports).
		CookiePath string `mapstructure:"cookiePath"`
	} `mapstructure:"node"`

	Coordinator struct {
		BatchSize      uint32        `mapstructure:"batchSize"`
		PollInterval   time.Duration `mapstructure:"pollInterval"`
		UndoHorizon    uint32        `mapstructure:"undoHorizon"`
		RetryBaseDelay time.Duration `mapstructure:"retryBaseDelay"`
		RetryMaxDelay  time.Duration `mapstructure:"retryMaxDelay"`
		RetryBudget    time.Duration `mapstructure:"retryBudget"`
	} `mapstructure:"coordinator"`

	Metrics struct {
		Enable bool   `mapstructure:"enable"`
		Listen string `mapstructure:"listen"`
	} `mapstructure:"metrics"`
}

// setDefaults mirrors the teacher's reliance on per-field defaults applied
// after decode rather than a zero-value struct literal, since viper only
// fills keys actually present in the file.
func setDefaults(cfg *Config) {
	if cfg.Chain == "" {
		cfg.Chain = "main"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDirname
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaultLogDirname
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Coordinator.BatchSize == 0 {
		cfg.Coordinator.BatchSize = DefaultBatchSize
	}
	if cfg.Coordinator.PollInterval == 0 {
		cfg.Coordinator.PollInterval = 10 * time.Second
	}
	if cfg.Coordinator.UndoHorizon == 0 {
		cfg.Coordinator.UndoHorizon = DefaultUndoHorizon
	}
	if cfg.Coordinator.RetryBaseDelay == 0 {
		cfg.Coordinator.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Coordinator.RetryMaxDelay == 0 {
		cfg.Coordinator.RetryMaxDelay = 30 * time.Second
	}
	if cfg.Coordinator.RetryBudget == 0 {
		cfg.Coordinator.RetryBudget = 10 * time.Minute
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9332"
	}
}

// Load reads configFile if given, else searches "executable directory ->
// current directory" for ordinals.yml, exactly as the teacher's
// loadConfigFile does for btc.yml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		baseDir := "."
		if exe, err := os.Executable(); err == nil {
			baseDir = filepath.Dir(exe)
		}
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		v.AddConfigPath(baseDir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	setDefaults(&cfg)
	return &cfg, nil
}
