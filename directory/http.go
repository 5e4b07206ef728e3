package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPDirectory queries a directory service over HTTP.
type HTTPDirectory struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPConfig configures [HTTPDirectory]. Token, when set, is sent as a bearer credential.
type HTTPConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewHTTPDirectory(cfg HTTPConfig) (*HTTPDirectory, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if base == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("directory base URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDirectory{baseURL: base, token: cfg.Token, client: client}, nil
}

type httpRecord struct {
	Email    string          `json:"email"`
	Disabled json.RawMessage `json:"disabled"`
}

func (d *HTTPDirectory) Lookup(ctx context.Context, email string) (Record, error) {
	email = NormalizeEmail(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/admins/"+url.PathEscape(email), nil)
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Accept", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Record{}, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Record{}, fmt.Errorf("directory lookup failed with status %d", resp.StatusCode)
	}

	var rec httpRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode directory record: %w", err)
	}
	return Record{Email: email, Disabled: decodeDisabled(rec.Disabled)}, nil
}

// decodeDisabled accepts true/false, 0/1 and their string forms.
func decodeDisabled(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return parseDisabled(s)
	}
	return parseDisabled(string(raw))
}
