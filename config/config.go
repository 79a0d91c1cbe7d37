package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type RateLimitPolicy struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		Environment string `mapstructure:"environment"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"server"`
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
	JWT struct {
		AccessSecret  string        `mapstructure:"access_secret"`
		RefreshSecret string        `mapstructure:"refresh_secret"`
		AccessTTL     time.Duration `mapstructure:"access_ttl"`
		RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"jwt"`
	Auth struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	RateLimit struct {
		API      RateLimitPolicy `mapstructure:"api"`
		Auth     RateLimitPolicy `mapstructure:"auth"`
		Register RateLimitPolicy `mapstructure:"register"`
	} `mapstructure:"rate_limit"`
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

	validateConfig()
}

// IsDevelopment reports whether the server runs in development mode.
// Error responses include internal detail only in this mode.
func IsDevelopment() bool {
	return AppConfig.Server.Environment != "production"
}

func validateConfig() {
	jwt := AppConfig.JWT
	if jwt.AccessSecret == "" || jwt.RefreshSecret == "" {
		log.Fatal("Missing required configuration: jwt.access_secret and jwt.refresh_secret must be set")
	}
	// Possession of one token type must never allow forging the other.
	if jwt.AccessSecret == jwt.RefreshSecret {
		log.Fatal("Invalid configuration: access and refresh token secrets must differ")
	}
}
