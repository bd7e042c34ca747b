// Package config loads service configuration from the environment into an
// explicit struct. Nothing here is consulted after startup; components
// receive the values they need through their constructors.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/helios-labs/walletgate/core"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	AppURL     string // base URL of the application, used for redirects and the SIWE statement
	ListenAddr string
	Env        string // "production" or "development", selects the logger

	SigningKeyPEM string // optional PEM-encoded EC private key; ephemeral when empty

	RedisURL   string
	SQLitePath string

	Binding        core.Binding
	AllowedDomains []string // relying-party domains accepted for challenges; empty allows any
	SiweStatement  string

	NFTEndpoint        string
	NFTAPIKey          string
	NFTContractAddress string // empty disables the gate
	NFTTimeout         time.Duration

	DefaultTeamSubdomain string
	DefaultTeamName      string

	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// Load reads the environment (and a .env file when present) into a Config.
func Load() (*Config, error) {
	// Best effort; production deployments set real environment variables.
	_ = godotenv.Load()

	cfg := &Config{
		AppURL:     getEnv("APP_URL", "http://localhost:9000"),
		ListenAddr: getEnv("LISTEN_ADDR", ":9000"),
		Env:        getEnv("APP_ENV", "development"),

		SigningKeyPEM: os.Getenv("JWT_SIGNING_KEY_PEM"),

		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath: getEnv("SQLITE_PATH", "walletgate.db"),

		SiweStatement: os.Getenv("SIWE_STATEMENT"),

		NFTEndpoint:        getEnv("NFT_API_ENDPOINT", "https://eth-mainnet.g.alchemy.com/nft/v2"),
		NFTAPIKey:          os.Getenv("NFT_API_KEY"),
		NFTContractAddress: os.Getenv("NFT_CONTRACT_ADDRESS"),

		DefaultTeamSubdomain: getEnv("DEFAULT_TEAM_SUBDOMAIN", "app"),
		DefaultTeamName:      getEnv("DEFAULT_TEAM_NAME", "Default"),
	}

	binding := core.Binding(getEnv("CHALLENGE_BINDING", string(core.BindingAddress)))
	if binding != core.BindingAddress && binding != core.BindingMessage {
		return nil, fmt.Errorf("config: invalid CHALLENGE_BINDING %q", binding)
	}
	cfg.Binding = binding

	if domains := os.Getenv("ALLOWED_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.AllowedDomains = append(cfg.AllowedDomains, d)
			}
		}
	}

	var err error
	if cfg.ChallengeTTL, err = parseDuration("CHALLENGE_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.AccessTTL, err = parseDuration("ACCESS_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDuration("REFRESH_TTL", "120h"); err != nil {
		return nil, err
	}
	if cfg.NFTTimeout, err = parseDuration("NFT_API_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	if cfg.NFTContractAddress != "" && cfg.NFTAPIKey == "" {
		return nil, fmt.Errorf("config: NFT_CONTRACT_ADDRESS is set but NFT_API_KEY is empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		val = fallback
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration in %s: %w", key, err)
	}
	return d, nil
}
