package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reputation-chain/txpool"
)

// Config is the typed view of config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LevelDB   LevelDBConfig   `mapstructure:"leveldb"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

// LevelDBConfig locates the round archive. An empty path keeps it in memory.
type LevelDBConfig struct {
	Path         string `mapstructure:"path"`
	ResetOnStart bool   `mapstructure:"reset_on_start"`
}

type ConsensusConfig struct {
	RoundDuration        time.Duration    `mapstructure:"round_duration"`
	TransactionsPerBlock int              `mapstructure:"transactions_per_block"`
	OnlineProbability    float64          `mapstructure:"online_probability"`
	EarlyExit            bool             `mapstructure:"early_exit"`
	InboxSize            int              `mapstructure:"inbox_size"`
	Seed                 int64            `mapstructure:"seed"` // 0 seeds from the clock
	Transactions         []string         `mapstructure:"transactions"`
	Reputation           ReputationConfig `mapstructure:"reputation"`
}

type ReputationConfig struct {
	Initial       float64 `mapstructure:"initial"`
	Min           float64 `mapstructure:"min"`
	Max           float64 `mapstructure:"max"`
	Decay         float64 `mapstructure:"decay"`
	ProposerShare float64 `mapstructure:"proposer_share"`
	VoterShare    float64 `mapstructure:"voter_share"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/rounds")
	v.SetDefault("leveldb.reset_on_start", true)

	v.SetDefault("consensus.round_duration", "30s")
	v.SetDefault("consensus.transactions_per_block", 5)
	v.SetDefault("consensus.online_probability", 0.95)
	v.SetDefault("consensus.early_exit", false)
	v.SetDefault("consensus.inbox_size", 1024)
	v.SetDefault("consensus.seed", 0)
	v.SetDefault("consensus.transactions", []string{})

	v.SetDefault("consensus.reputation.initial", 100.0)
	v.SetDefault("consensus.reputation.min", 1.0)
	v.SetDefault("consensus.reputation.max", 1000.0)
	v.SetDefault("consensus.reputation.decay", 0.99)
	v.SetDefault("consensus.reputation.proposer_share", 0.10)
	v.SetDefault("consensus.reputation.voter_share", 0.05)
}

// Load reads the YAML file at path (optional when empty) on top of defaults.
// REPCHAIN_* environment variables override both, e.g. REPCHAIN_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("repchain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// poolSize is the size of the transaction pool built from txs.
func poolSize(txs []string) int {
	if len(txs) == 0 {
		return len(txpool.DefaultTransactions)
	}
	return len(txs)
}

func (c *Config) Validate() error {
	cc := c.Consensus
	rc := cc.Reputation
	switch {
	case c.Server.Port <= 0:
		return errors.New("server.port must be positive")
	case cc.RoundDuration <= 0:
		return errors.New("consensus.round_duration must be positive")
	case cc.TransactionsPerBlock <= 0:
		return errors.New("consensus.transactions_per_block must be positive")
	case cc.OnlineProbability < 0 || cc.OnlineProbability > 1:
		return errors.New("consensus.online_probability must be within [0, 1]")
	case cc.InboxSize <= 0:
		return errors.New("consensus.inbox_size must be positive")
	case poolSize(cc.Transactions) < 2*cc.TransactionsPerBlock:
		return fmt.Errorf("consensus.transactions must hold at least %d entries, 2x transactions_per_block", 2*cc.TransactionsPerBlock)
	case rc.Min <= 0 || rc.Min > rc.Max:
		return errors.New("consensus.reputation bounds must satisfy 0 < min <= max")
	case rc.Initial < rc.Min || rc.Initial > rc.Max:
		return errors.New("consensus.reputation.initial must lie within [min, max]")
	case rc.Decay <= 0 || rc.Decay > 1:
		return errors.New("consensus.reputation.decay must be within (0, 1]")
	}
	return nil
}
