package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LedgerModeMemory = "memory"
	LedgerModeRest   = "rest"
)

// Config holds all configuration for the application.
type Config struct {
	Registry Registry   `mapstructure:"registry"`
	Engine   Engine     `mapstructure:"engine"`
	Ledger   Ledger     `mapstructure:"ledger"`
	Pairs    []PairSeed `mapstructure:"pairs"`
	Logger   Logger     `mapstructure:"logger"`
	Server   Server     `mapstructure:"server"`
	Database Database   `mapstructure:"database"`
}

// Registry holds the configuration for the pair registry.
type Registry struct {
	Admin string `mapstructure:"admin"`
}

// Engine holds the configuration for the swap engine.
type Engine struct {
	// Address is the identity the engine uses as spender on the ledger.
	Address           string        `mapstructure:"address"`
	SettlementTimeout time.Duration `mapstructure:"settlement_timeout"`
}

// Ledger holds the configuration for the token ledger backend.
type Ledger struct {
	Mode           string        `mapstructure:"mode"`
	URL            string        `mapstructure:"url"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Tokens         []TokenSeed   `mapstructure:"tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// TokenSeed describes a token preloaded into the in-memory ledger.
type TokenSeed struct {
	Address   string        `mapstructure:"address"`
	Symbol    string        `mapstructure:"symbol"`
	Decimals  uint8         `mapstructure:"decimals"`
	Balances  []BalanceSeed `mapstructure:"balances"`
	Approvals []string      `mapstructure:"approvals"` // owners granting the engine an unlimited allowance
}

// BalanceSeed is an initial holding of a token.
type BalanceSeed struct {
	Account string `mapstructure:"account"`
	Amount  string `mapstructure:"amount"`
}

// PairSeed is a pair created by the administrator at startup when the registry is empty.
type PairSeed struct {
	TokenA   string `mapstructure:"token_a"`
	TokenB   string `mapstructure:"token_b"`
	RateAtoB string `mapstructure:"rate_a_to_b"`
	ReserveA string `mapstructure:"reserve_a"`
	ReserveB string `mapstructure:"reserve_b"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.address", "semidex")
	v.SetDefault("engine.settlement_timeout", 5*time.Second)
	v.SetDefault("ledger.mode", LedgerModeMemory)
	v.SetDefault("ledger.rate_limit", 20)      // requests per second
	v.SetDefault("ledger.rate_limit_burst", 5) // burst size
	v.SetDefault("ledger.timeout", 10*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "semidex.db")
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Registry.Admin == "" {
		return fmt.Errorf("registry.admin must be set")
	}
	if c.Engine.Address == "" {
		return fmt.Errorf("engine.address must be set")
	}
	switch c.Ledger.Mode {
	case LedgerModeMemory:
	case LedgerModeRest:
		if c.Ledger.URL == "" {
			return fmt.Errorf("ledger.url must be set when ledger.mode is %q", LedgerModeRest)
		}
	default:
		return fmt.Errorf("unknown ledger.mode %q", c.Ledger.Mode)
	}
	return nil
}
