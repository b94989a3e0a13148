package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries deployment settings. Values come from the environment
// (optionally via a .env file); command line flags may override them.
type Config struct {
	APIListenAddr string `envconfig:"API_LISTEN_ADDR" default:":4000"`
	WSListenAddr  string `envconfig:"WS_LISTEN_ADDR" default:":4001"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"debug"`
	DataDir       string `envconfig:"DATA_DIR" default:"./data"`
}

func Load() (Config, error) {
	// .env is a development convenience, absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("skillswap", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
