package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
)

// Credentials are the account identifiers required by every trading call.
type Credentials struct {
	AppKey             string
	AppSecret          string
	AccountNo          string
	AccountProductCode string
}

// Session owns the process-wide broker access token. The token is
// shared by every caller; Invalidate followed by the next Token call
// performs an idempotent re-issue, so concurrent callers racing to
// refresh at worst issue one redundant token.
type Session struct {
	cfg        *infra.Config
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	token string
}

// NewSession creates a session bound to the configured broker host.
func NewSession(cfg *infra.Config) *Session {
	return &Session{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Broker.TimeoutSec) * time.Second,
		},
		logger: slog.Default().With("module", "kis_session"),
	}
}

// Credentials returns the configured account identifiers, or a
// configuration error naming the missing variables.
func (s *Session) Credentials() (Credentials, error) {
	if !s.cfg.HasCredentials() {
		missing := strings.Join(s.cfg.MissingCredentials(), ", ")
		return Credentials{}, &domain.BrokerError{
			Category: domain.CategoryConfig,
			Op:       "credentials",
			Msg:      "broker credentials not configured, missing: " + missing,
			Err:      domain.ErrCredentialsMissing,
		}
	}
	return Credentials{
		AppKey:             s.cfg.Broker.AppKey,
		AppSecret:          s.cfg.Broker.AppSecret,
		AccountNo:          s.cfg.Broker.AccountNo,
		AccountProductCode: s.cfg.Broker.AccountProductCode,
	}, nil
}

// Token returns the cached access token, issuing a new one when the
// cache is empty.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	cred, err := s.Credentials()
	if err != nil {
		return "", err
	}

	token, err := s.issueToken(ctx, cred)
	if err != nil {
		return "", err
	}
	s.token = token
	s.logger.Info("access token issued")
	return token, nil
}

// Invalidate drops the cached token. The next Token call re-issues.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	s.logger.Info("access token invalidated")
}

func (s *Session) issueToken(ctx context.Context, cred Credentials) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     cred.AppKey,
		"appsecret":  cred.AppSecret,
	})

	url := s.cfg.Broker.BaseURL + "/oauth2/tokenP"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewTransportError("issue_token", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", domain.NewTransportError("issue_token", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewTransportError("issue_token", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewTransportError("issue_token",
			fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, string(respBody)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", domain.NewTransportError("issue_token", err)
	}
	if out.AccessToken == "" {
		return "", domain.NewTransportError("issue_token", fmt.Errorf("empty access token"))
	}
	return out.AccessToken, nil
}

// Hashkey requests a request-integrity token for a POST body. This is
// best-effort: on any failure the order is submitted without one, so
// errors collapse to an empty string.
func (s *Session) Hashkey(ctx context.Context, body []byte) string {
	cred, err := s.Credentials()
	if err != nil {
		return ""
	}

	url := s.cfg.Broker.BaseURL + "/uapi/hashkey"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ""
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("appKey", cred.AppKey)
	req.Header.Set("appSecret", cred.AppSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("hashkey request failed, submitting without", slog.Any("error", err))
		return ""
	}
	defer resp.Body.Close()

	var out struct {
		Hash string `json:"HASH"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ""
	}
	return out.Hash
}
