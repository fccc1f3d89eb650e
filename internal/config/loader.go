package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SHADOW_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SHADOW_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Integration ──
	setStr(&cfg.Integration.Mode, "SHADOW_INTEGRATION_MODE")
	setStr(&cfg.Integration.Sim.WalletAddress, "SHADOW_SIM_WALLET_ADDRESS")
	setStr(&cfg.Integration.Sim.StartingBalance, "SHADOW_SIM_STARTING_BALANCE")
	setBool(&cfg.Integration.Sim.Seed, "SHADOW_SIM_SEED")

	// ── Chain ──
	setStr(&cfg.Chain.NodeURL, "SHADOW_CHAIN_NODE_URL")
	setDuration(&cfg.Chain.CallTimeout, "SHADOW_CHAIN_CALL_TIMEOUT")
	setFloat64(&cfg.Chain.RateLimitRPS, "SHADOW_CHAIN_RATE_LIMIT_RPS")
	setInt(&cfg.Chain.RateLimitBurst, "SHADOW_CHAIN_RATE_LIMIT_BURST")

	// ── Wallet ──
	setStr(&cfg.Wallet.BridgeURL, "SHADOW_WALLET_BRIDGE_URL")
	setStr(&cfg.Wallet.InjectionPoint, "SHADOW_WALLET_INJECTION_POINT")

	// ── Contracts ──
	setStr(&cfg.Contracts.FactoryAddress, "SHADOW_CONTRACTS_FACTORY_ADDRESS")
	setStr(&cfg.Contracts.VaultAddress, "SHADOW_CONTRACTS_VAULT_ADDRESS")
	setBool(&cfg.Contracts.CreateLock, "SHADOW_CONTRACTS_CREATE_LOCK")
	setDuration(&cfg.Contracts.LockTTL, "SHADOW_CONTRACTS_LOCK_TTL")

	// ── Prover ──
	setStr(&cfg.Prover.URL, "SHADOW_PROVER_URL")
	setDuration(&cfg.Prover.Timeout, "SHADOW_PROVER_TIMEOUT")
	setStr(&cfg.Prover.APIKey, "SHADOW_PROVER_API_KEY")
	setStr(&cfg.Prover.APISecret, "SHADOW_PROVER_API_SECRET")
	setStr(&cfg.Prover.EncryptedSecretPath, "SHADOW_PROVER_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Prover.SecretPassword, "SHADOW_PROVER_SECRET_PASSWORD")
	setStr(&cfg.Prover.PositionProgramHash, "SHADOW_PROVER_POSITION_PROGRAM_HASH")
	setStr(&cfg.Prover.ClaimProgramHash, "SHADOW_PROVER_CLAIM_PROGRAM_HASH")
	setStr(&cfg.Prover.WithdrawProgramHash, "SHADOW_PROVER_WITHDRAW_PROGRAM_HASH")
	setBool(&cfg.Prover.Archive, "SHADOW_PROVER_ARCHIVE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SHADOW_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SHADOW_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SHADOW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SHADOW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SHADOW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SHADOW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SHADOW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SHADOW_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SHADOW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SHADOW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SHADOW_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SHADOW_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SHADOW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SHADOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SHADOW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SHADOW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SHADOW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SHADOW_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SHADOW_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SHADOW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SHADOW_S3_REGION")
	setStr(&cfg.S3.Bucket, "SHADOW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SHADOW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SHADOW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SHADOW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SHADOW_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SHADOW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SHADOW_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SHADOW_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SHADOW_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SHADOW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SHADOW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SHADOW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Severities, "SHADOW_NOTIFY_SEVERITIES")

	// ── Activity ──
	setInt(&cfg.Activity.Capacity, "SHADOW_ACTIVITY_CAPACITY")
	setDuration(&cfg.Activity.ArchiveInterval, "SHADOW_ACTIVITY_ARCHIVE_INTERVAL")
	setInt(&cfg.Activity.RetentionDays, "SHADOW_ACTIVITY_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SHADOW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
