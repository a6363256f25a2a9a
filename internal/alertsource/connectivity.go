package alertsource

import (
	"context"
	"runtime"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// ConnectivityChecker verifies a host is reachable before configuration is
// persisted. A nil checker disables the probe.
type ConnectivityChecker interface {
	Check(ctx context.Context, host string) error
}

// Compile-time interface guard.
var _ ConnectivityChecker = (*PingChecker)(nil)

// PingChecker probes reachability with ICMP echo.
type PingChecker struct {
	timeout time.Duration
	count   int
	logger  *zap.Logger
}

// NewPingChecker creates an ICMP reachability checker.
func NewPingChecker(timeout time.Duration, count int, logger *zap.Logger) *PingChecker {
	return &PingChecker{timeout: timeout, count: count, logger: logger}
}

// Check pings the host. No echo reply within the timeout is a
// backend_unavailable failure.
func (p *PingChecker) Check(ctx context.Context, host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"resolve "+host, err)
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"reachability probe canceled for "+host, ctx.Err())
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			host+" is not reachable", nil)
	}
	return nil
}
