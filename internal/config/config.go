// Package config defines the top-level configuration for the shadowmarket
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SHADOW_* environment variables.
type Config struct {
	Integration IntegrationConfig `toml:"integration"`
	Chain       ChainConfig       `toml:"chain"`
	Wallet      WalletConfig      `toml:"wallet"`
	Contracts   ContractsConfig   `toml:"contracts"`
	Prover      ProverConfig      `toml:"prover"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Activity    ActivityConfig    `toml:"activity"`
	LogLevel    string            `toml:"log_level"`
}

// IntegrationConfig selects between the live adapters and the simulated
// chain.
type IntegrationConfig struct {
	Mode string    `toml:"mode"`
	Sim  SimConfig `toml:"sim"`
}

// SimConfig tunes the simulated chain used when integration.mode is "sim".
type SimConfig struct {
	WalletAddress   string `toml:"wallet_address"`
	WalletName      string `toml:"wallet_name"`
	StartingBalance string `toml:"starting_balance"`
	Seed            bool   `toml:"seed"`
}

// ChainConfig holds the fallback node and per-call limits.
type ChainConfig struct {
	// NodeURL is a Starknet JSON-RPC endpoint used when no wallet exposes a
	// provider. Empty disables the fallback.
	NodeURL        string   `toml:"node_url"`
	CallTimeout    duration `toml:"call_timeout"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// WalletConfig points at a JSON-RPC wallet bridge and the injection point it
// is registered under.
type WalletConfig struct {
	BridgeURL      string `toml:"bridge_url"`
	InjectionPoint string `toml:"injection_point"`
}

// ContractsConfig holds the deployed contract addresses.
type ContractsConfig struct {
	FactoryAddress string   `toml:"factory_address"`
	VaultAddress   string   `toml:"vault_address"`
	CreateLock     bool     `toml:"create_lock"`
	LockTTL        duration `toml:"lock_ttl"`
}

// ProverConfig holds the remote prover endpoint, its credentials and the
// default program hashes.
type ProverConfig struct {
	URL                 string   `toml:"url"`
	Timeout             duration `toml:"timeout"`
	APIKey              string   `toml:"api_key"`
	APISecret           string   `toml:"api_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	PositionProgramHash string   `toml:"position_program_hash"`
	ClaimProgramHash    string   `toml:"claim_program_hash"`
	WithdrawProgramHash string   `toml:"withdraw_program_hash"`
	// Archive caches generated artifacts in S3 when s3.enabled is set.
	Archive       bool   `toml:"archive"`
	ArchivePrefix string `toml:"archive_prefix"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the activity
// audit mirror.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards mutating routes when set.
	APIKey          string  `toml:"api_key"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
	RateLimitBurst  int     `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials. Severities lists the
// activity severities forwarded to the channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Severities        []string `toml:"severities"`
}

// ActivityConfig tunes the in-memory activity ring and its archive.
type ActivityConfig struct {
	Capacity int `toml:"capacity"`
	// ArchiveInterval flushes mirrored activity to S3; zero disables it.
	ArchiveInterval duration `toml:"archive_interval"`
	RetentionDays   int      `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Integration: IntegrationConfig{
			Mode: "sim",
			Sim: SimConfig{
				WalletName:      "Simulated ArgentX",
				StartingBalance: "25000",
				Seed:            true,
			},
		},
		Chain: ChainConfig{
			CallTimeout:    duration{30 * time.Second},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Wallet: WalletConfig{
			InjectionPoint: "starknet",
		},
		Contracts: ContractsConfig{
			LockTTL: duration{2 * time.Minute},
		},
		Prover: ProverConfig{
			Timeout:       duration{2 * time.Minute},
			ArchivePrefix: "proofs",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "shadowmarket",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
		},
		Notify: NotifyConfig{
			Severities: []string{"success", "warning"},
		},
		Activity: ActivityConfig{
			Capacity:      12,
			RetentionDays: 90,
		},
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"live": true,
	"sim":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSeverities = map[string]bool{
	"info":    true,
	"success": true,
	"warning": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Integration.Mode)] {
		errs = append(errs, fmt.Sprintf("integration: unknown mode %q (valid: live, sim)", c.Integration.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Live mode talks to real contracts, so their addresses must be known.
	if strings.EqualFold(c.Integration.Mode, "live") {
		if c.Contracts.FactoryAddress == "" {
			errs = append(errs, "contracts: factory_address is required in live mode")
		}
		if c.Wallet.BridgeURL == "" && c.Chain.NodeURL == "" {
			errs = append(errs, "live mode needs wallet.bridge_url or chain.node_url")
		}
	}
	if c.Wallet.BridgeURL != "" && c.Wallet.InjectionPoint == "" {
		errs = append(errs, "wallet: injection_point must not be empty when bridge_url is set")
	}

	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be > 0")
	}
	if c.Chain.RateLimitRPS < 0 {
		errs = append(errs, "chain: rate_limit_rps must be >= 0")
	}
	if c.Chain.RateLimitRPS > 0 && c.Chain.RateLimitBurst < 1 {
		errs = append(errs, "chain: rate_limit_burst must be >= 1 when rate_limit_rps is set")
	}

	if c.Contracts.CreateLock {
		if !c.Redis.Enabled {
			errs = append(errs, "contracts: create_lock requires redis.enabled")
		}
		if c.Contracts.LockTTL.Duration <= 0 {
			errs = append(errs, "contracts: lock_ttl must be > 0")
		}
	}

	// Prover: key and secret travel together.
	if c.Prover.URL != "" {
		hasSecret := c.Prover.APISecret != "" || c.Prover.EncryptedSecretPath != ""
		if (c.Prover.APIKey != "") != hasSecret {
			errs = append(errs, "prover: api_key and api_secret (or encrypted_secret_path) must be set together")
		}
		if c.Prover.EncryptedSecretPath != "" && c.Prover.SecretPassword == "" {
			errs = append(errs, "prover: secret_password is required when encrypted_secret_path is set")
		}
		if c.Prover.Timeout.Duration <= 0 {
			errs = append(errs, "prover: timeout must be > 0")
		}
	}
	if c.Prover.Archive && !c.S3.Enabled {
		errs = append(errs, "prover: archive requires s3.enabled")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	for _, s := range c.Notify.Severities {
		if !validSeverities[strings.ToLower(s)] {
			errs = append(errs, fmt.Sprintf("notify: unknown severity %q (valid: info, success, warning)", s))
		}
	}

	if c.Activity.Capacity < 1 {
		errs = append(errs, "activity: capacity must be >= 1")
	}
	if c.Activity.ArchiveInterval.Duration > 0 && !(c.S3.Enabled && c.Postgres.Enabled) {
		errs = append(errs, "activity: archive_interval requires s3.enabled and postgres.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
