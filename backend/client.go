package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "goSession/1"
	maxBodyBytes     = 1 << 20

	// RequestIDHeader correlates client requests with backend logs.
	RequestIDHeader = "X-Request-ID"
)

// Config configures a [Client].
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the REST backend.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{baseURL: base, http: hc, userAgent: ua}, nil
}

// LoginResponse is the successful /auth/login payload.
type LoginResponse struct {
	AccessToken string
	User        session.UserRecord
	Message     string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		AccessToken string          `json:"access_token"`
		User        json.RawMessage `json:"user"`
	} `json:"data"`
}

// ErrLoginRejected is returned for a 2xx response with success=false. The backend message is
// carried in the wrapping error.
var ErrLoginRejected = errors.New("backend rejected login")

// Login posts credentials and returns the issued token and user.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	var env loginEnvelope
	if err := parseResponse(resp, "login", &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		if env.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginRejected, env.Message)
		}
		return nil, ErrLoginRejected
	}
	if strings.TrimSpace(env.Data.AccessToken) == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrDecode)
	}
	user, err := session.DecodeUser(env.Data.User)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &LoginResponse{AccessToken: env.Data.AccessToken, User: *user, Message: env.Message}, nil
}

// Me fetches the user the token was issued for.
func (c *Client) Me(ctx context.Context, token string) (session.UserRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return session.UserRecord{}, err
	}

	var raw json.RawMessage
	if err := parseResponse(resp, "me", &raw); err != nil {
		return session.UserRecord{}, err
	}
	user, err := decodeMe(raw)
	if err != nil {
		return session.UserRecord{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return user, nil
}

// decodeMe accepts a bare user object, {"user": {...}}, or {"data": {"user": {...}}}.
func decodeMe(raw json.RawMessage) (session.UserRecord, error) {
	if u, err := session.DecodeUser(raw); err == nil {
		return *u, nil
	}
	var wrapped struct {
		User json.RawMessage `json:"user"`
		Data *struct {
			User json.RawMessage `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return session.UserRecord{}, err
	}
	inner := wrapped.User
	if len(inner) == 0 && wrapped.Data != nil {
		inner = wrapped.Data.User
	}
	u, err := session.DecodeUser(inner)
	if err != nil {
		return session.UserRecord{}, err
	}
	return *u, nil
}

// Logout asks the backend to invalidate token. The response body is ignored.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	if err != nil {
		return err
	}
	return parseResponse(resp, "logout", nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseResponse(resp *http.Response, op string, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Op: op, Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			se.Message = er.Message
			if se.Message == "" {
				se.Message = er.Error
			}
		}
		if se.Message == "" {
			se.Message = strings.TrimSpace(string(body))
		}
		return se
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
