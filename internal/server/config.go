package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8190)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/delfin.db")
	v.SetDefault("secrets.passphrase", "")

	// Module defaults
	v.SetDefault("modules.inventory.probe_timeout", "30s")
	v.SetDefault("modules.alertsource.ping_timeout", "5s")
	v.SetDefault("modules.alertsource.ping_count", 3)
	v.SetDefault("modules.alertsource.sync_timeout", "30s")
	v.SetDefault("modules.alertsource.relay_url", "")
	v.SetDefault("modules.alertsource.relay_secret", "")
	v.SetDefault("modules.alertsource.skip_connectivity_check", false)
	v.SetDefault("modules.poller.enabled", true)
	v.SetDefault("modules.poller.interval", "60s")
	v.SetDefault("modules.poller.poll_timeout", "30s")
	v.SetDefault("modules.poller.max_workers", 5)
	v.SetDefault("modules.poller.polls_per_second", 5)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("delfin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/delfin")
	}

	// Environment variable support: DELFIN_SERVER_PORT=9090
	v.SetEnvPrefix("DELFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
