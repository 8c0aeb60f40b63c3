package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/receipt-ledger/internal/auth"
)

// HTTPInvoker calls operations on a receipt-ledger server.
type HTTPInvoker struct {
	baseURL string
	session *auth.Session
	client  *http.Client
}

// NewHTTPInvoker creates an invoker that authenticates through session.
func NewHTTPInvoker(baseURL string, session *auth.Session, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		client:  &http.Client{Timeout: timeout},
	}
}

// Invoke posts payload to /api/invoke/{operation} and unwraps the envelope.
func (h *HTTPInvoker) Invoke(ctx context.Context, operation string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Operation: operation, Message: fmt.Sprintf("encoding payload: %v", err)}
	}

	token, err := h.session.Token(ctx)
	if err != nil {
		return nil, &Error{Operation: operation, Message: err.Error(), StatusCode: http.StatusUnauthorized}
	}

	endpoint := fmt.Sprintf("%s/api/invoke/%s", h.baseURL, url.PathEscape(operation))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Operation: operation, Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Operation: operation, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Operation: operation, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		env := Envelope{StatusCode: resp.StatusCode, Body: data}
		return env.Result(operation)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &Error{Operation: operation, Message: fmt.Sprintf("decoding envelope: %v", err)}
	}
	return env.Result(operation)
}

// TokenClient obtains access tokens from the server with basic credentials.
type TokenClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewTokenClient creates an auth.Refresher for the given server and credentials.
func NewTokenClient(baseURL, username, password string, timeout time.Duration) *TokenClient {
	return &TokenClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

// Refresh requests a new token from /api/token.
func (t *TokenClient) Refresh(ctx context.Context) (auth.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/token", nil)
	if err != nil {
		return auth.Token{}, fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(t.username, t.password)

	resp, err := t.client.Do(req)
	if err != nil {
		return auth.Token{}, fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return auth.Token{}, fmt.Errorf("token request rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token auth.Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return auth.Token{}, fmt.Errorf("decoding token: %w", err)
	}
	return token, nil
}
