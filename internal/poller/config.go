package poller

import "time"

type PollerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	MaxWorkers     int           `mapstructure:"max_workers"`
	PollsPerSecond float64       `mapstructure:"polls_per_second"`
}

func DefaultConfig() PollerConfig {
	return PollerConfig{
		Enabled:        true,
		Interval:       60 * time.Second,
		PollTimeout:    30 * time.Second,
		MaxWorkers:     5,
		PollsPerSecond: 5,
	}
}
