package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/solana"
)

type Config struct {
	// Secrets (from .env)
	HeliusAPIKey    string
	APIKey          string
	CORSAllowOrigin string

	// Solana
	SolanaRPCURL    string
	HeliusBaseURL   string
	BattleProgramID string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Caching
	RedisURL           string
	SnapshotTTLMinutes int
	ProfileTTLMinutes  int

	// Snapshot refresher
	RefresherEnabled       bool
	SnapshotRefreshMinutes int

	// API
	APIPort         int
	ScanConcurrency int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		HeliusAPIKey:    envStr("HELIUS_API_KEY", ""),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Solana
		SolanaRPCURL:    envStr("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		HeliusBaseURL:   envStr("HELIUS_BASE_URL", "https://api.helius.xyz"),
		BattleProgramID: envStr("BATTLE_PROGRAM_ID", solana.DefaultBattleProgramID),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "wave_warz"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Caching
		RedisURL:           envStr("REDIS_URL", ""),
		SnapshotTTLMinutes: envInt("SNAPSHOT_TTL_MINUTES", 5),
		ProfileTTLMinutes:  envInt("PROFILE_TTL_MINUTES", 10),

		// Snapshot refresher
		RefresherEnabled:       envBool("REFRESHER_ENABLED", true),
		SnapshotRefreshMinutes: envInt("SNAPSHOT_REFRESH_MINUTES", 5),

		// API
		APIPort:         envInt("API_PORT", 8090),
		ScanConcurrency: envInt("SCAN_CONCURRENCY", 4),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.HeliusAPIKey == "" {
		errs = append(errs, "HELIUS_API_KEY is required for volume reconstruction")
	}
	if _, err := solana.PublicKeyFromBase58(c.BattleProgramID); err != nil {
		errs = append(errs, fmt.Sprintf("BATTLE_PROGRAM_ID is not a valid address: %v", err))
	}
	if c.SnapshotTTLMinutes <= 0 {
		errs = append(errs, "SNAPSHOT_TTL_MINUTES must be positive")
	}
	if c.RefresherEnabled && c.SnapshotRefreshMinutes <= 0 {
		errs = append(errs, "SNAPSHOT_REFRESH_MINUTES must be positive")
	}
	if c.ScanConcurrency <= 0 {
		errs = append(errs, "SCAN_CONCURRENCY must be positive")
	}

	if c.DBUser == "" {
		fmt.Println("[WARN] DB_USER not set — connecting to PostgreSQL without credentials")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}
	if c.RedisURL == "" {
		fmt.Println("[WARN] REDIS_URL not set — trader profile caching disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Wave Warz Analytics Configuration ===")
	fmt.Println("--------------------------------------")
	fmt.Printf("Battle Program: %s...\n", truncAddr(c.BattleProgramID))
	fmt.Printf("Solana RPC: %s\n", stripQuery(c.SolanaRPCURL))
	fmt.Printf("Helius History: %s\n", boolLabel(c.HeliusAPIKey != "", "configured", "NOT CONFIGURED"))
	fmt.Println("--------------------------------------")
	fmt.Println("Caching:")
	fmt.Printf("  Snapshot TTL: %d minutes\n", c.SnapshotTTLMinutes)
	fmt.Printf("  Profile Cache: %s\n", boolLabel(c.RedisURL != "", fmt.Sprintf("redis, %d minutes", c.ProfileTTLMinutes), "disabled"))
	fmt.Println("--------------------------------------")
	fmt.Println("Snapshot Refresher:")
	if c.RefresherEnabled {
		fmt.Printf("  Rescan active battles every %d minutes\n", c.SnapshotRefreshMinutes)
	} else {
		fmt.Println("  Disabled")
	}
	fmt.Println("--------------------------------------")
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Printf("API Auth: %s\n", boolLabel(c.APIKey != "", "bearer token", "open"))
	fmt.Printf("CORS Origin: %s\n", c.CORSAllowOrigin)
	fmt.Printf("Scan Concurrency: %d\n", c.ScanConcurrency)
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func truncAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:10]
	}
	return addr
}

// stripQuery drops query parameters before printing, since RPC URLs
// often carry the provider API key there.
func stripQuery(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i] + "?..."
	}
	return url
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
