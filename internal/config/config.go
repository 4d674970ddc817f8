package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	DBName string `mapstructure:"db_name"`

	Storage struct {
		Path          string `mapstructure:"path"`
		InMemory      bool   `mapstructure:"in_memory"`
		Compress      bool   `mapstructure:"compress"`
		WriteInterval int    `mapstructure:"write_interval"`
	} `mapstructure:"storage"`

	Server struct {
		Port  int  `mapstructure:"port"`
		Log   bool `mapstructure:"log"`
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"server"`
}

func Default() *Config {
	var cfg Config
	cfg.DBName = "segadb"
	cfg.Storage.Path = "./db.segadb"
	cfg.Storage.WriteInterval = 1000
	cfg.Server.Port = 7091
	cfg.Server.Log = true
	return &cfg
}

// Load reads a yaml config file over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}
