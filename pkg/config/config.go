package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string
	LogFile    string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// RabbitMQ
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPassword string

	// JWT
	JWTSecret string

	// AWS S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
	S3UseSSL           string
	S3BucketName       string
	StreamURLTTL       time.Duration

	// Chains
	Networks            []NetworkConfig
	DefaultNetwork      string
	PlatformPrivateKey  string
	WalletSecret        string
	SettlementDecimals  uint8
	ChainCallTimeout    time.Duration
	ChainReceiptTimeout time.Duration
	ChainPollInterval   time.Duration
	QuoteTTL            time.Duration

	// Services URLs
	AuthServiceURL string
	FilmServiceURL string
}

// NetworkConfig describes one EVM chain the marketplace settles on.
type NetworkConfig struct {
	Name            string
	RPCURL          string
	ChainID         int64
	FilmContract    string
	ContentContract string
	PaymentToken    string
	// Tokens are extra ERC-20 tokens shown in balance aggregation, keyed by symbol.
	Tokens map[string]string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	config := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogFile:    getEnv("LOG_FILE", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "reelshare"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQHost:     getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:     getEnv("RABBITMQ_PORT", "5672"),
		RabbitMQUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", "guest"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		S3UseSSL:           getEnv("S3_USE_SSL", "true"),
		S3BucketName:       getEnv("S3_BUCKET_NAME", "reelshare-media"),
		StreamURLTTL:       getEnvDuration("STREAM_URL_TTL", 2*time.Hour),

		DefaultNetwork:      getEnv("DEFAULT_NETWORK", ""),
		PlatformPrivateKey:  getEnv("PLATFORM_PRIVATE_KEY", ""),
		WalletSecret:        getEnv("WALLET_DERIVATION_SECRET", ""),
		SettlementDecimals:  uint8(getEnvInt("SETTLEMENT_DECIMALS", 6)),
		ChainCallTimeout:    getEnvDuration("CHAIN_CALL_TIMEOUT", 15*time.Second),
		ChainReceiptTimeout: getEnvDuration("CHAIN_RECEIPT_TIMEOUT", 2*time.Minute),
		ChainPollInterval:   getEnvDuration("CHAIN_POLL_INTERVAL", 2*time.Second),
		QuoteTTL:            getEnvDuration("QUOTE_TTL", 30*time.Minute),

		AuthServiceURL: getEnv("AUTH_SERVICE_URL", "http://localhost:8001"),
		FilmServiceURL: getEnv("FILM_SERVICE_URL", "http://localhost:8002"),
	}

	networks, err := loadNetworks(getEnv("CHAIN_NETWORKS", ""))
	if err != nil {
		return nil, err
	}
	config.Networks = networks
	if config.DefaultNetwork == "" && len(networks) > 0 {
		config.DefaultNetwork = networks[0].Name
	}

	// JWT_SECRET and WALLET_DERIVATION_SECRET are validated by the services that need them

	return config, nil
}

// Network returns the named network configuration.
func (c *Config) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

func loadNetworks(list string) ([]NetworkConfig, error) {
	var networks []NetworkConfig
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		prefix := "CHAIN_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"

		rpcURL := getEnv(prefix+"RPC_URL", "")
		if rpcURL == "" {
			return nil, fmt.Errorf("%sRPC_URL is required for network %s", prefix, name)
		}
		chainID, err := strconv.ParseInt(getEnv(prefix+"CHAIN_ID", "0"), 10, 64)
		if err != nil || chainID <= 0 {
			return nil, fmt.Errorf("%sCHAIN_ID must be a positive integer", prefix)
		}
		tokens, err := parseTokens(getEnv(prefix+"TOKENS", ""))
		if err != nil {
			return nil, fmt.Errorf("%sTOKENS: %w", prefix, err)
		}

		networks = append(networks, NetworkConfig{
			Name:            name,
			RPCURL:          rpcURL,
			ChainID:         chainID,
			FilmContract:    getEnv(prefix+"FILM_CONTRACT", ""),
			ContentContract: getEnv(prefix+"CONTENT_CONTRACT", ""),
			PaymentToken:    getEnv(prefix+"PAYMENT_TOKEN", ""),
			Tokens:          tokens,
		})
	}
	return networks, nil
}

// parseTokens reads "USDC:0xabc...,DAI:0xdef..." pairs.
func parseTokens(value string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		symbol, address, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(symbol) == "" || strings.TrimSpace(address) == "" {
			return nil, fmt.Errorf("invalid token entry %q", pair)
		}
		tokens[strings.ToUpper(strings.TrimSpace(symbol))] = strings.TrimSpace(address)
	}
	return tokens, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
