package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	"go.uber.org/zap"
)

const defaultRESTTimeout = 30 * time.Second

// RESTConfig describes one vendor's management API surface. The field
// names let each driver declare where its login endpoint lives and how
// the session token travels, without subclassing the client.
type RESTConfig struct {
	BaseURL  string
	Username string
	Password string

	// LoginPath receives a POST with the credentials and returns the
	// session token. LogoutPath receives a best-effort DELETE.
	LoginPath  string
	LogoutPath string

	// UserField and PasswordField name the credential keys in the login
	// request body. TokenField names the token in the login response;
	// TokenHeader is the request header carrying it on later calls.
	UserField     string
	PasswordField string
	TokenField    string
	TokenHeader   string

	Timeout time.Duration
}

// RESTSession is a token-authenticated JSON client for one array. Login
// is lazy: the first Call obtains a token, which is then cached. When the
// array reports the token expired, Call performs exactly one transparent
// re-login and retries; a second rejection is surfaced to the caller.
type RESTSession struct {
	cfg        RESTConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewRESTSession creates a client from the vendor's API description.
func NewRESTSession(cfg RESTConfig, logger *zap.Logger) *RESTSession {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRESTTimeout
	}
	if cfg.UserField == "" {
		cfg.UserField = "user"
	}
	if cfg.PasswordField == "" {
		cfg.PasswordField = "password"
	}
	if cfg.TokenField == "" {
		cfg.TokenField = "key"
	}
	if cfg.TokenHeader == "" {
		cfg.TokenHeader = "X-Auth-Token"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &RESTSession{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Login exchanges credentials for a session token and caches it.
// A non-2xx response is an invalid_credentials error carrying the
// backend's reason text.
func (s *RESTSession) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// Call performs a JSON request against the array, logging in first if no
// token is cached. Returns the raw response body for the caller to decode.
func (s *RESTSession) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		if err := s.loginLocked(ctx); err != nil {
			return nil, err
		}
	}

	status, respBody, err := s.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if authExpired(status) {
		// Exactly one transparent re-login, then one retry.
		s.token = ""
		if err := s.loginLocked(ctx); err != nil {
			return nil, err
		}
		status, respBody, err = s.do(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if authExpired(status) {
			return nil, driver.NewError(driver.ErrCodeBackendUnavailable,
				fmt.Sprintf("%s %s rejected after re-login (%d): %s",
					method, path, status, string(respBody)), nil)
		}
	}

	if status >= 400 {
		return nil, driver.NewError(driver.ErrCodeBackendUnavailable,
			fmt.Sprintf("%s %s returned %d: %s", method, path, status, string(respBody)), nil)
	}

	return respBody, nil
}

// Logout invalidates the cached token on the array. Best-effort: failures
// are logged, never returned, so teardown is never blocked.
func (s *RESTSession) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" || s.cfg.LogoutPath == "" {
		s.token = ""
		return
	}

	status, _, err := s.do(ctx, http.MethodDelete, s.cfg.LogoutPath, nil)
	if err != nil || status >= 400 {
		s.logger.Warn("rest logout failed",
			zap.String("base_url", s.cfg.BaseURL),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	s.token = ""
}

// loginLocked performs the credential exchange. Caller holds s.mu.
func (s *RESTSession) loginLocked(ctx context.Context) error {
	creds := map[string]string{
		s.cfg.UserField:     s.cfg.Username,
		s.cfg.PasswordField: s.cfg.Password,
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal login body: %w", err)
	}

	url := s.cfg.BaseURL + s.cfg.LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"login request to "+s.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return driver.NewError(driver.ErrCodeBackendUnavailable, "read login response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return driver.NewError(driver.ErrCodeInvalidCredentials,
			fmt.Sprintf("login rejected (%d): %s", resp.StatusCode, string(respBody)), nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err != nil {
		return driver.NewError(driver.ErrCodeBackendUnavailable, "decode login response", err)
	}
	var token string
	if raw, ok := fields[s.cfg.TokenField]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			return driver.NewError(driver.ErrCodeBackendUnavailable,
				"decode session token field "+s.cfg.TokenField, err)
		}
	}
	if token == "" {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"login response missing token field "+s.cfg.TokenField, nil)
	}

	s.token = token
	return nil
}

// do performs one HTTP exchange with the cached token attached.
// Caller holds s.mu.
func (s *RESTSession) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := s.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(s.cfg.TokenHeader, s.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, driver.NewError(driver.ErrCodeBackendUnavailable,
			fmt.Sprintf("http %s %s", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, driver.NewError(driver.ErrCodeBackendUnavailable, "read response", err)
	}

	return resp.StatusCode, respBody, nil
}

// authExpired reports whether the array rejected the session token.
func authExpired(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
