package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const envLocal = "local"

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage     string        `yaml:"storage" env:"STORAGE" env-default:"sqlite"`
	StoragePath string        `yaml:"storage_path" env:"STORAGE_PATH"`
	Mongo       MongoConfig   `yaml:"mongo"`
	HTTP        HTTPConfig    `yaml:"http"`
	Tokens      TokenConfig   `yaml:"tokens"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env:"HTTP_PORT" env-default:"4000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"kaizoo"`
}

type TokenConfig struct {
	AccessSecret  string        `yaml:"-" env:"ACCESS_TOKEN_SECRET"`
	RefreshPepper string        `yaml:"-" env:"REFRESH_TOKEN_PEPPER"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
}

// MustLoad reads configuration from the given path (or CONFIG_PATH when the
// path is empty) and panics on any problem. Secrets come from the
// environment only; outside the local env a missing secret is a startup
// failure, never a silent default.
func MustLoad(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		panic("config path is empty")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	if cfg.Tokens.AccessSecret == "" {
		if cfg.Env != envLocal {
			panic("ACCESS_TOKEN_SECRET is required outside local env")
		}
		cfg.Tokens.AccessSecret = "local-dev-access-secret"
	}
	if cfg.Tokens.RefreshPepper == "" && cfg.Env != envLocal {
		panic("REFRESH_TOKEN_PEPPER is required outside local env")
	}

	if cfg.Storage == "sqlite" && cfg.StoragePath == "" {
		panic("storage_path is required for sqlite storage")
	}
	if cfg.Storage == "mongo" && cfg.Mongo.URI == "" {
		panic("mongo.uri is required for mongo storage")
	}

	return &cfg
}
