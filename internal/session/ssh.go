// Package session holds the protocol clients drivers use to reach one
// array: an SSH command shell and a token-authenticated REST client.
// Each session owns a single live connection; callers serialize through
// it because the remote protocols are inherently sequential.
package session

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"context"

	"github.com/merliyatf/delfin/pkg/driver"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const defaultSSHTimeout = 10 * time.Second

// SSHSession executes CLI commands on one array over a lazily-dialed SSH
// connection. The connection is established on first Execute and reused
// until it drops or the session is closed. Safe for concurrent use; calls
// are serialized because the shell processes one command at a time.
type SSHSession struct {
	addr     string
	username string
	password string
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	client *ssh.Client

	// dial is the function used to establish SSH connections.
	// Defaults to ssh.Dial; overridden in tests.
	dial func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

// NewSSHSession creates a session for the given endpoint. No connection
// is made until the first Execute.
func NewSSHSession(host string, port int, username, password string, logger *zap.Logger) *SSHSession {
	if port == 0 {
		port = 22
	}
	return &SSHSession{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		username: username,
		password: password,
		timeout:  defaultSSHTimeout,
		logger:   logger,
	}
}

// Execute sends a single command and returns its raw multi-line output.
// A handshake or authentication failure is a protocol_negotiation error
// and is never retried here; a dropped channel mid-command is a
// backend_unavailable error and invalidates the cached connection so the
// next call re-dials.
func (s *SSHSession) Execute(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureClient(); err != nil {
		return "", err
	}

	sess, err := s.client.NewSession()
	if err != nil {
		s.dropClient()
		return "", driver.NewError(driver.ErrCodeBackendUnavailable,
			"open ssh channel to "+s.addr, err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := sess.Output(command)
		ch <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Abandon the command; the connection state is unknown, so drop it.
		s.dropClient()
		return "", driver.NewError(driver.ErrCodeBackendUnavailable,
			"ssh command canceled", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			s.dropClient()
			return "", driver.NewError(driver.ErrCodeBackendUnavailable,
				"ssh command failed on "+s.addr, r.err)
		}
		return string(r.out), nil
	}
}

// Close tears down the cached connection. Best-effort.
func (s *SSHSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropClient()
}

// ensureClient dials if no connection is cached. Caller holds s.mu.
func (s *SSHSession) ensureClient() error {
	if s.client != nil {
		return nil
	}

	config := &ssh.ClientConfig{
		User: s.username,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // G106: arrays sit on a management network; host key pinning is a future enhancement
		Timeout:         s.timeout,
	}

	dial := s.dial
	if dial == nil {
		dial = ssh.Dial
	}
	client, err := dial("tcp", s.addr, config)
	if err != nil {
		s.logger.Debug("ssh dial failed",
			zap.String("addr", s.addr),
			zap.Error(err),
		)
		return classifyDialError(s.addr, err)
	}
	s.client = client
	return nil
}

// dropClient closes and forgets the cached connection. Caller holds s.mu.
func (s *SSHSession) dropClient() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// classifyDialError separates handshake/auth rejections from plain
// reachability failures.
func classifyDialError(addr string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "handshake failed") {
		return driver.NewError(driver.ErrCodeProtocolNegotiation,
			"ssh negotiation with "+addr+" failed", err)
	}
	return driver.NewError(driver.ErrCodeBackendUnavailable,
		"ssh dial "+addr, err)
}
