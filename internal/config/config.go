// Package config centralizes the environment-recognized options from
// spec §6. It follows the teacher's requireEnv/getEnvOrDefault idiom
// (cmd/engine/main.go) but gathers the results into one struct instead of
// loose locals, since both the indexer and API binaries need the same
// settings.
package config

import (
	"log"
	"os"
	"strconv"
)

// Defaults for the chain-height-gated BRC-20 parameters, per spec §6.
const (
	DefaultBrc20GenesisBlock        = 779832
	DefaultBrc20SelfMintActivation  = 837090
	DefaultTotalSatSupply     int64 = 2_099_999_997_690_000
)

// Config holds every recognized environment option.
type Config struct {
	OrdinalsDatabaseURL      string
	Brc20DatabaseURL         string
	Brc20GenesisBlock        int64
	Brc20SelfMintActivation  int64
	ServerVersion            string
	Port                     string
	AllowedOrigins           string
	APIAuthToken             string
	BitcoinRPCHost           string
	BitcoinRPCUser           string
	BitcoinRPCPass           string
}

// LoadIndexer reads configuration for the indexer (write) process. DATABASE_URL
// values are required; there is no safe default for a credential.
func LoadIndexer() Config {
	dsn := requireEnv("DATABASE_URL")
	return Config{
		OrdinalsDatabaseURL:     getEnvOrDefault("ORDINALS_DATABASE_URL", dsn),
		Brc20DatabaseURL:        getEnvOrDefault("BRC20_DATABASE_URL", dsn),
		Brc20GenesisBlock:       getEnvInt64OrDefault("BRC20_GENESIS_BLOCK", DefaultBrc20GenesisBlock),
		Brc20SelfMintActivation: getEnvInt64OrDefault("BRC20_SELF_MINT_ACTIVATION_BLOCK", DefaultBrc20SelfMintActivation),
		ServerVersion:           getEnvOrDefault("SERVER_VERSION", "dev"),
		// BitcoinRPCHost is optional: when unset, the indexer trusts the
		// event source's block identity outright (C8's default path).
		BitcoinRPCHost: os.Getenv("BITCOIN_RPC_HOST"),
		BitcoinRPCUser: os.Getenv("BITCOIN_RPC_USER"),
		BitcoinRPCPass: os.Getenv("BITCOIN_RPC_PASS"),
	}
}

// LoadAPI reads configuration for the read-API (serve) process.
func LoadAPI() Config {
	dsn := requireEnv("DATABASE_URL")
	return Config{
		OrdinalsDatabaseURL:     getEnvOrDefault("ORDINALS_DATABASE_URL", dsn),
		Brc20DatabaseURL:        getEnvOrDefault("BRC20_DATABASE_URL", dsn),
		Brc20GenesisBlock:       getEnvInt64OrDefault("BRC20_GENESIS_BLOCK", DefaultBrc20GenesisBlock),
		Brc20SelfMintActivation: getEnvInt64OrDefault("BRC20_SELF_MINT_ACTIVATION_BLOCK", DefaultBrc20SelfMintActivation),
		ServerVersion:           getEnvOrDefault("SERVER_VERSION", "dev"),
		Port:                    getEnvOrDefault("PORT", "8407"),
		AllowedOrigins:          os.Getenv("ALLOWED_ORIGINS"),
		APIAuthToken:            os.Getenv("API_AUTH_TOKEN"),
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set, matching cmd/engine/main.go's fail-fast startup behavior.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64OrDefault(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid integer for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
