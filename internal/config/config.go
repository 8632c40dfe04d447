package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Primary struct {
			DSN string
		}
	}

	// Generation configures the external 3D generation service client and
	// where downloaded assets land.
	Generation struct {
		BaseURL         string        `mapstructure:"base_url"`
		APIKey          string        `mapstructure:"api_key"`
		StatusTimeout   time.Duration `mapstructure:"status_timeout"`
		DownloadTimeout time.Duration `mapstructure:"download_timeout"`
		StaticRoot      string        `mapstructure:"static_root"`
	} `mapstructure:"generation"`

	Redis struct {
		Address  string
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	}

	Serve struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	}
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".") // config.yaml in the current directory

	viper.SetDefault("generation.status_timeout", "30s")
	viper.SetDefault("generation.download_timeout", "120s")
	viper.SetDefault("generation.static_root", "./static")
	viper.SetDefault("redis.address", "127.0.0.1:6379")
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.queues", map[string]int{"generation": 6, "downloads": 3, "default": 1})
	viper.SetDefault("serve.address", "127.0.0.1")
	viper.SetDefault("serve.port", "8080")

	viper.AutomaticEnv()
	// The API key usually arrives via environment rather than config.yaml.
	viper.BindEnv("generation.api_key", "GENERATION_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
