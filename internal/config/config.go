package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"stablesend/internal/models"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel          string
	HTTP              HTTPConfig
	Kafka             KafkaConfig
	Database          DatabaseConfig
	Custody           CustodyConfig
	SettlementAddress string
	Networks          map[models.NetworkID]NetworkConfig
}

// HTTPConfig holds the API server configuration
type HTTPConfig struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	BrokerAddress string
	Topic         string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CustodyConfig holds the wallet custody service client configuration
type CustodyConfig struct {
	BaseURL      string
	APIKey       string
	EntitySecret string
	Timeout      time.Duration
	RateLimit    float64
	MaxRetries   int
	RetryDelay   time.Duration
}

// NetworkConfig holds per-network settlement configuration. SettlementWalletID
// is the custody handle of the shared settlement wallet on that network; it
// funds the withdraw leg of every cross-network transfer arriving there.
type NetworkConfig struct {
	DisplayName        string
	TokenAddress       string
	SettlementWalletID string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Not fatal, as env vars might be set externally
	_ = godotenv.Load()

	config := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			ListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
			ReadTimeout:  time.Duration(getEnvAsInt("HTTP_READ_TIMEOUT", 15)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("HTTP_WRITE_TIMEOUT", 60)) * time.Second,
		},
		Kafka: KafkaConfig{
			BrokerAddress: getEnv("KAFKA_BROKER_ADDRESS", "localhost:9092"),
			Topic:         getEnv("KAFKA_TOPIC", "transfer-events"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "stablesend"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Custody: CustodyConfig{
			BaseURL:      getEnv("CUSTODY_BASE_URL", "https://api.circle.com/v1/w3s"),
			APIKey:       getEnv("CUSTODY_API_KEY", ""),
			EntitySecret: getEnv("CUSTODY_ENTITY_SECRET", ""),
			Timeout:      time.Duration(getEnvAsInt("CUSTODY_TIMEOUT", 30)) * time.Second,
			RateLimit:    getEnvAsFloat("CUSTODY_RATE_LIMIT", 4),
			MaxRetries:   getEnvAsInt("CUSTODY_MAX_RETRIES", 1),
			RetryDelay:   time.Duration(getEnvAsInt("CUSTODY_RETRY_DELAY", 5)) * time.Second,
		},
		SettlementAddress: getEnv("SETTLEMENT_ADDRESS", ""),
		Networks:          make(map[models.NetworkID]NetworkConfig),
	}

	// Load network configurations
	config.Networks[models.BaseSepolia] = NetworkConfig{
		DisplayName:        "Base Sepolia",
		TokenAddress:       getEnv("USDC_ADDRESS_BASE", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		SettlementWalletID: getEnv("SETTLEMENT_WALLET_ID_BASE", ""),
	}

	config.Networks[models.ArcTestnet] = NetworkConfig{
		DisplayName:        "Arc Testnet",
		TokenAddress:       getEnv("USDC_ADDRESS_ARC", "0x3600000000000000000000000000000000000000"),
		SettlementWalletID: getEnv("SETTLEMENT_WALLET_ID_ARC", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settlement configuration at startup. A network without a
// settlement wallet handle cannot receive cross-network transfers, so a
// missing handle is a configuration error, not a per-transfer failure.
func (c *Config) Validate() error {
	if c.SettlementAddress == "" {
		return fmt.Errorf("SETTLEMENT_ADDRESS is not configured")
	}
	for network, nc := range c.Networks {
		if nc.TokenAddress == "" {
			return fmt.Errorf("token address is not configured for network %s", network)
		}
		if nc.SettlementWalletID == "" {
			return fmt.Errorf("settlement wallet is not configured for network %s", network)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
