/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RunMigrations             bool   `mapstructure:"RUN_MIGRATIONS"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	AllowedOrigins            string `mapstructure:"ALLOWED_ORIGINS"`
	AndinoProductionURL       string `mapstructure:"ANDINO_PRODUCTION_URL"`
	AndinoDevelopmentURL      string `mapstructure:"ANDINO_DEVELOPMENT_URL"`
	AndinoSandboxURL          string `mapstructure:"ANDINO_SANDBOX_URL"`
	AndinoDefaultEnvironment  string `mapstructure:"ANDINO_DEFAULT_ENVIRONMENT"`
	AndinoDemoEnvironments    string `mapstructure:"ANDINO_DEMO_ENVIRONMENTS"`
	AndinoDemoSMSCode         string `mapstructure:"ANDINO_DEMO_SMS_CODE"`
	SMSRateLimitPerHour       int    `mapstructure:"SMS_RATE_LIMIT_PER_HOUR"`
	SnapshotRefreshSchedule   string `mapstructure:"SNAPSHOT_REFRESH_SCHEDULE"`
	SnapshotRefreshBatchLimit int    `mapstructure:"SNAPSHOT_REFRESH_BATCH_LIMIT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RUN_MIGRATIONS", false)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lumapay:rate_limit")
	viper.SetDefault("ALLOWED_ORIGINS", "https://*,http://*")
	viper.SetDefault("ANDINO_DEFAULT_ENVIRONMENT", "development")
	viper.SetDefault("ANDINO_DEMO_ENVIRONMENTS", "development,sandbox")
	viper.SetDefault("ANDINO_DEMO_SMS_CODE", "123456")
	viper.SetDefault("SMS_RATE_LIMIT_PER_HOUR", 5)
	viper.SetDefault("SNAPSHOT_REFRESH_SCHEDULE", "")
	viper.SetDefault("SNAPSHOT_REFRESH_BATCH_LIMIT", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ALLOWED_ORIGINS")
	_ = viper.BindEnv("ANDINO_PRODUCTION_URL")
	_ = viper.BindEnv("ANDINO_DEVELOPMENT_URL")
	_ = viper.BindEnv("ANDINO_SANDBOX_URL")
	_ = viper.BindEnv("ANDINO_DEFAULT_ENVIRONMENT")
	_ = viper.BindEnv("ANDINO_DEMO_ENVIRONMENTS")
	_ = viper.BindEnv("ANDINO_DEMO_SMS_CODE")
	_ = viper.BindEnv("SMS_RATE_LIMIT_PER_HOUR")
	_ = viper.BindEnv("SNAPSHOT_REFRESH_SCHEDULE")
	_ = viper.BindEnv("SNAPSHOT_REFRESH_BATCH_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lumapay:rate_limit"
	}
	config.AndinoDefaultEnvironment = strings.TrimSpace(config.AndinoDefaultEnvironment)
	if config.AndinoDefaultEnvironment == "" {
		config.AndinoDefaultEnvironment = "development"
	}
	config.AndinoDemoSMSCode = strings.TrimSpace(config.AndinoDemoSMSCode)
	if config.AndinoDemoSMSCode == "" {
		config.AndinoDemoSMSCode = "123456"
	}

	if config.SMSRateLimitPerHour < 0 {
		log.Printf("level=warn component=config msg=\"negative sms rate limit configured; disabling the limiter\" limit=%d", config.SMSRateLimitPerHour)
		config.SMSRateLimitPerHour = 0
	}
	if config.SnapshotRefreshBatchLimit <= 0 {
		config.SnapshotRefreshBatchLimit = 100
	}

	return
}

// AndinoEndpoints collects the configured provider base URLs keyed by
// environment name. Environments without a URL are omitted.
func (c Config) AndinoEndpoints() map[string]string {
	endpoints := make(map[string]string)
	if url := strings.TrimSpace(c.AndinoProductionURL); url != "" {
		endpoints["production"] = url
	}
	if url := strings.TrimSpace(c.AndinoDevelopmentURL); url != "" {
		endpoints["development"] = url
	}
	if url := strings.TrimSpace(c.AndinoSandboxURL); url != "" {
		endpoints["sandbox"] = url
	}
	return endpoints
}

// DemoEnvironmentList splits the comma-separated demo environment names.
func (c Config) DemoEnvironmentList() []string {
	return splitAndTrim(c.AndinoDemoEnvironments)
}

// AllowedOriginList splits the comma-separated CORS origins.
func (c Config) AllowedOriginList() []string {
	return splitAndTrim(c.AllowedOrigins)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
