package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the HTTP server section.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DataDir         string        `mapstructure:"data_dir"`
	ReadOnly        bool          `mapstructure:"read_only"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetDefaults registers every default key. Exposed so the CLI can build a
// Viper without reading a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", filepath.Join("data", "fieldcast.db"))

	v.SetDefault("plugins.roster.enabled", true)
	v.SetDefault("plugins.roster.rotation_days", 1)
	v.SetDefault("plugins.roster.default_limit", 100)

	v.SetDefault("plugins.prediction.enabled", true)
	v.SetDefault("plugins.prediction.auto_regenerate", true)
	v.SetDefault("plugins.prediction.retention", "2160h")
	v.SetDefault("plugins.prediction.maintenance_interval", "1h")
	v.SetDefault("plugins.prediction.generate_timeout", "30s")
}

// LoadConfig reads defaults, an optional YAML file and FC_ environment
// variables, e.g. FC_SERVER_PORT=9090.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fieldcast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fieldcast")
	}

	v.SetEnvPrefix("FC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// ServerConfig decodes the server section of v. It unmarshals the whole
// tree because UnmarshalKey on a section skips environment overrides.
func ServerConfig(v *viper.Viper) (Config, error) {
	var root struct {
		Server Config `mapstructure:"server"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return Config{}, fmt.Errorf("decode server config: %w", err)
	}
	c := root.Server
	if c.Port < 0 || c.Port > 65535 {
		return Config{}, fmt.Errorf("server.port %d out of range", c.Port)
	}
	return c, nil
}
