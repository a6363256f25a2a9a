package alertsource

import "time"

type AlertSourceConfig struct {
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
	PingCount   int           `mapstructure:"ping_count"`
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`

	// RelayURL is the external trap-relay endpoint that receives
	// sync_snmp_config notifications. Empty disables relay notification.
	RelayURL    string `mapstructure:"relay_url"`
	RelaySecret string `mapstructure:"relay_secret"`

	// SkipConnectivityCheck disables the ICMP reachability probe before
	// persisting. Meant for environments that filter ICMP.
	SkipConnectivityCheck bool `mapstructure:"skip_connectivity_check"`
}

func DefaultConfig() AlertSourceConfig {
	return AlertSourceConfig{
		PingTimeout: 5 * time.Second,
		PingCount:   3,
		SyncTimeout: 30 * time.Second,
	}
}
