package federated

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

	"github.com/MrEthical07/goSession/jwt"
)

const (
	restProviderName    = "rest"
	defaultRESTEndpoint = "https://identitytoolkit.googleapis.com/v1"
	defaultRESTTimeout  = 10 * time.Second
	maxRESTBody         = 1 << 20
)

// RESTConfig configures [REST].
type RESTConfig struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Buffer     int
}

// REST signs in against an identity-toolkit style password endpoint. The auth-state stream
// is local to the process: it reflects sign-ins and sign-outs made through this value.
type REST struct {
	endpoint string
	apiKey   string
	client   *http.Client
	hub      *Hub
}

// NewREST returns a REST provider. APIKey is required.
func NewREST(cfg RESTConfig) (*REST, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("federated rest provider requires api key")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultRESTEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid federated endpoint: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRESTTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &REST{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		hub:      NewHub(cfg.Buffer),
	}, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken     string `json:"idToken"`
	Email       string `json:"email"`
	LocalID     string `json:"localId"`
	DisplayName string `json:"displayName"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *REST) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(signInRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, r.fail(0, CodeInternalError, "", err)
	}

	endpoint := r.endpoint + "/accounts:signInWithPassword?key=" + url.QueryEscape(r.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, r.fail(0, CodeInternalError, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, r.fail(0, CodeNetworkRequestFailed, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTBody))
	if err != nil {
		return nil, r.fail(resp.StatusCode, CodeNetworkRequestFailed, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env errorEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
			return nil, r.fail(resp.StatusCode, normalizeCode(env.Error.Message), env.Error.Message, nil)
		}
		code := CodeInternalError
		if resp.StatusCode == http.StatusServiceUnavailable {
			code = CodeServiceUnavailable
		}
		return nil, r.fail(resp.StatusCode, code, strings.TrimSpace(string(raw)), nil)
	}

	var out signInResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, r.fail(resp.StatusCode, CodeInternalError, "", err)
	}

	identity := &Identity{
		UID:         out.LocalID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
		IDToken:     out.IDToken,
	}
	// The token body is authoritative when the envelope omits fields.
	if claims, err := jwt.Peek(out.IDToken); err == nil {
		if identity.UID == "" {
			identity.UID = claims.Subject
		}
		if identity.Email == "" {
			identity.Email = claims.Email
		}
		if identity.DisplayName == "" {
			identity.DisplayName = claims.Name
		}
	}
	if identity.Email == "" {
		identity.Email = strings.TrimSpace(email)
	}

	r.hub.Publish(identity)
	return identity.clone(), nil
}

// SignOut drops the local identity. The endpoint has no server-side sign-out.
func (r *REST) SignOut(context.Context) error {
	r.hub.Publish(nil)
	return nil
}

func (r *REST) Subscribe() *Subscription {
	return r.hub.Subscribe()
}

func (r *REST) Current() *Identity {
	return r.hub.Current()
}

func (r *REST) fail(status int, code, message string, err error) error {
	return &ProviderError{
		Provider:  restProviderName,
		Operation: "sign in",
		Status:    status,
		Code:      code,
		Message:   message,
		Err:       err,
	}
}
