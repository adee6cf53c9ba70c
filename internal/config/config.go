package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Edge    EdgeConfig    `mapstructure:"edge"`
	Devices DevicesConfig `mapstructure:"devices"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// EdgeConfig points at the local mDS discovery service. A zero Timeout
// means requests are bounded only by the caller's context.
type EdgeConfig struct {
	MDSURL   string        `mapstructure:"mds_url"`
	Clusters string        `mapstructure:"clusters"`
	Timeout  time.Duration `mapstructure:"timeout"`
	KeySalt  string        `mapstructure:"key_salt"`
}

type DevicesConfig struct {
	LegacyErrors bool `mapstructure:"legacy_errors"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MSGBOARD_SERVER_PORT maps to server.port.
var envReplacer = strings.NewReplacer(".", "_")

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("msgboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/msgboard")
	}

	setDefaults(v)

	v.SetEnvPrefix("MSGBOARD")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 256*1024)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "./data/msgboard.db")

	v.SetDefault("edge.mds_url", "http://localhost:8083/mds/v1")
	v.SetDefault("edge.clusters", "linkLocal")
	v.SetDefault("edge.timeout", time.Duration(0))
	v.SetDefault("edge.key_salt", "")

	v.SetDefault("devices.legacy_errors", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
