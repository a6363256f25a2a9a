package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// --- Test SSH Server ---

func generateTestHostKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

// newTestSSHServer starts an in-process SSH server that accepts password
// auth and answers every exec request by calling respond with the command.
func newTestSSHServer(t *testing.T, username, password string, respond func(command string) string) (host string, port int, cleanup func()) {
	t.Helper()

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == username && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
	}
	config.AddHostKey(generateTestHostKey(t))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			go handleTestSSHConn(conn, config, respond)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() {
		listener.Close()
		mu.Lock()
		for _, conn := range conns {
			conn.Close()
		}
		mu.Unlock()
		<-done
	}
}

func handleTestSSHConn(conn net.Conn, config *ssh.ServerConfig, respond func(string) string) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go func() {
			defer channel.Close()
			for req := range requests {
				if req.Type != "exec" {
					if req.WantReply {
						req.Reply(false, nil)
					}
					continue
				}
				// exec payload: uint32 length-prefixed command string.
				var command string
				if len(req.Payload) >= 4 {
					n := binary.BigEndian.Uint32(req.Payload)
					if int(n)+4 <= len(req.Payload) {
						command = string(req.Payload[4 : 4+n])
					}
				}
				if req.WantReply {
					req.Reply(true, nil)
				}
				channel.Write([]byte(respond(command)))
				status := make([]byte, 4) // exit-status 0
				channel.SendRequest("exit-status", false, status)
				return
			}
		}()
	}
}

// --- Tests ---

func TestSSHSession_Execute(t *testing.T) {
	host, port, cleanup := newTestSSHServer(t, "3parcli", "secret", func(command string) string {
		if command == "showalert -d" {
			return "Id: 12345\nSeverity: Major\n"
		}
		return "unknown command\n"
	})
	defer cleanup()

	s := NewSSHSession(host, port, "3parcli", "secret", zap.NewNop())
	defer s.Close()

	out, err := s.Execute(context.Background(), "showalert -d")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Id: 12345\nSeverity: Major\n" {
		t.Errorf("output = %q", out)
	}
}

func TestSSHSession_Execute_ReusesConnection(t *testing.T) {
	dials := 0
	host, port, cleanup := newTestSSHServer(t, "admin", "pw", func(string) string {
		return "ok\n"
	})
	defer cleanup()

	s := NewSSHSession(host, port, "admin", "pw", zap.NewNop())
	defer s.Close()

	realDial := ssh.Dial
	s.dial = func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		dials++
		return realDial(network, addr, config)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Execute(context.Background(), "showalert -d"); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
	if dials != 1 {
		t.Errorf("dial count = %d, want 1 (connection should be reused)", dials)
	}
}

func TestSSHSession_AuthFailure_IsProtocolNegotiation(t *testing.T) {
	host, port, cleanup := newTestSSHServer(t, "admin", "right", func(string) string {
		return ""
	})
	defer cleanup()

	s := NewSSHSession(host, port, "admin", "wrong", zap.NewNop())
	defer s.Close()

	_, err := s.Execute(context.Background(), "showalert -d")
	if err == nil {
		t.Fatal("expected error for bad password")
	}
	if !driver.IsProtocolNegotiation(err) {
		t.Errorf("expected protocol_negotiation error, got: %v", err)
	}
}

func TestSSHSession_DialRefused_IsBackendUnavailable(t *testing.T) {
	// Grab a port that nothing is listening on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	s := NewSSHSession(addr.IP.String(), addr.Port, "admin", "pw", zap.NewNop())
	defer s.Close()

	_, err = s.Execute(context.Background(), "showalert -d")
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if !driver.IsBackendUnavailable(err) {
		t.Errorf("expected backend_unavailable error, got: %v", err)
	}
}

func TestSSHSession_CanceledContext(t *testing.T) {
	host, port, cleanup := newTestSSHServer(t, "admin", "pw", func(string) string {
		time.Sleep(2 * time.Second)
		return "too late\n"
	})
	defer cleanup()

	s := NewSSHSession(host, port, "admin", "pw", zap.NewNop())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := s.Execute(ctx, "showalert -d")
	if err == nil {
		t.Fatal("expected error for canceled command")
	}
	if !driver.IsBackendUnavailable(err) {
		t.Errorf("expected backend_unavailable error, got: %v", err)
	}
}

func TestSSHSession_RedialsAfterDrop(t *testing.T) {
	host, port, cleanup := newTestSSHServer(t, "admin", "pw", func(string) string {
		return "ok\n"
	})

	s := NewSSHSession(host, port, "admin", "pw", zap.NewNop())
	defer s.Close()

	if _, err := s.Execute(context.Background(), "showsys"); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	// Kill the server; the cached connection is now dead.
	cleanup()

	if _, err := s.Execute(context.Background(), "showsys"); err == nil {
		t.Fatal("expected error against dead server")
	}

	// A fresh server on a new port proves the session re-dials cleanly.
	host2, port2, cleanup2 := newTestSSHServer(t, "admin", "pw", func(string) string {
		return "ok\n"
	})
	defer cleanup2()
	s2 := NewSSHSession(host2, port2, "admin", "pw", zap.NewNop())
	defer s2.Close()

	if _, err := s2.Execute(context.Background(), "showsys"); err != nil {
		t.Fatalf("Execute after redial: %v", err)
	}
}

func TestNewSSHSession_DefaultPort(t *testing.T) {
	s := NewSSHSession("10.0.0.5", 0, "admin", "pw", zap.NewNop())
	want := net.JoinHostPort("10.0.0.5", strconv.Itoa(22))
	if s.addr != want {
		t.Errorf("addr = %q, want %q", s.addr, want)
	}
}
