package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	LogLevel              string
	ReportCacheTTLSeconds int
}

// Load reads configuration from the environment. DATABASE_URL empty means the
// seeded in-memory store; REDIS_ADDR empty means no report cache.
func Load() Config {
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REPORT_CACHE_TTL_SECONDS", 30)

	cfg := Config{
		Port:                  viper.GetString("PORT"),
		AllowedOrigin:         viper.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:           viper.GetString("DATABASE_URL"),
		RedisAddr:             viper.GetString("REDIS_ADDR"),
		RedisPassword:         viper.GetString("REDIS_PASSWORD"),
		RedisDB:               viper.GetInt("REDIS_DB"),
		LogLevel:              viper.GetString("LOG_LEVEL"),
		ReportCacheTTLSeconds: viper.GetInt("REPORT_CACHE_TTL_SECONDS"),
	}
	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 30
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
