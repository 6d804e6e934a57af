package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	JWT struct {
		SecretKey          string `mapstructure:"secret_key"`
		Issuer             string `mapstructure:"issuer"`
		Audience           string `mapstructure:"audience"`
		AccessTokenMinutes int    `mapstructure:"access_token_minutes"`
		RefreshTokenDays   int    `mapstructure:"refresh_token_days"`
	} `mapstructure:"jwt"`
	TokenHash struct {
		// Pepper is a server-side secret mixed into every refresh token
		// hash. It must never be persisted alongside the hashes.
		Pepper string `mapstructure:"pepper"`
		// RefreshGraceSeconds > 0 enables serving a benign replay of a
		// just-rotated refresh token from cache instead of escalating.
		RefreshGraceSeconds int `mapstructure:"refresh_grace_seconds"`
	} `mapstructure:"token_hash"`
}

var AppConfig Config

func LoadConfig(path string) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}

// Validate checks the security-critical configuration at startup so that a
// misconfigured deployment fails fast instead of per request.
func (c *Config) Validate() error {
	if len(c.JWT.SecretKey) < 32 {
		return errors.New("jwt.secret_key must be at least 32 bytes")
	}
	if c.JWT.Issuer == "" {
		return errors.New("jwt.issuer is required")
	}
	if c.JWT.Audience == "" {
		return errors.New("jwt.audience is required")
	}
	if c.TokenHash.Pepper == "" {
		return errors.New("token_hash.pepper is required")
	}
	return nil
}
