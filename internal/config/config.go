package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds process-level bootstrap configuration read once at startup
// from the environment (.env). Trading/runtime tunables that can be
// hot-reloaded without a restart live in the Settings map (settings.go),
// not here.
type Config struct {
	// Database
	DBPath string

	// Server
	Port    string
	GinMode string

	// Auth (thin, external-collaborator boundary per spec.md §1)
	JWTSecret        string
	JWTRefreshSecret string

	// Crypto Vault master key (base64, 32 bytes after decode)
	VaultMasterKey string

	// Redis (optional relay of broadcast hub arena-state blobs; unset means
	// the hub fans out in-process only)
	RedisAddr string

	AresWorkspaceRoot string

	// CoinGecko-shaped public market data source (see internal/market).
	MarketDataBaseURL string

	// Binance USDT-M futures REST base URL for live-mode order execution
	// (see internal/exchange). Empty uses the adapter's production default.
	BinanceFuturesBaseURL string
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		DBPath: getEnv("DB_PATH", "./arena.db"),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		JWTSecret:        getEnv("JWT_SECRET", "arena-dev-secret-change-me"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),

		VaultMasterKey: getEnv("VAULT_MASTER_KEY", ""),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		AresWorkspaceRoot: getEnv("ARENA_WORKSPACE_ROOT", "."),

		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://api.coingecko.com/api/v3"),

		BinanceFuturesBaseURL: getEnv("BINANCE_FUTURES_BASE_URL", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
