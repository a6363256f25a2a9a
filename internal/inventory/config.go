package inventory

import "time"

type InventoryConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

func DefaultConfig() InventoryConfig {
	return InventoryConfig{
		ProbeTimeout: 30 * time.Second,
	}
}
