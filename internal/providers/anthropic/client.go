package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/rs/zerolog/log"
)

// Client è il client per l'API Anthropic Claude
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	userAgent  string
}

// ClientOption è un'opzione per configurare il client
type ClientOption func(*Client)

// WithBaseURL imposta l'URL base personalizzato
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithAPIVersion imposta la versione dell'API
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithHTTPClient imposta un client HTTP personalizzato
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout imposta il timeout del client HTTP
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient crea un nuovo client Anthropic
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		userAgent: "GoLeapCode/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CreateMessage invia una richiesta all'endpoint /v1/messages
func (c *Client) CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &providers.ProviderError{
			Provider: "anthropic",
			Model:    req.Model,
			Err:      err,
		}
	}
	defer httpResp.Body.Close()

	if info := c.parseRateLimitHeaders(httpResp.Header); info != nil {
		log.Debug().
			Int("requests_remaining", info.RequestsRemaining).
			Int("tokens_remaining", info.TokensRemaining).
			Msg("Rate limit info")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(req.Model, httpResp)
	}

	var resp MessagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &resp, nil
}

// newRequest crea una richiesta HTTP con gli header obbligatori
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", c.apiVersion)
	req.Header.Set("User-Agent", c.userAgent)

	return req, nil
}

// handleErrorResponse classifica la risposta di errore
func (c *Client) handleErrorResponse(model string, resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	pe := &providers.ProviderError{
		Provider:   "anthropic",
		Model:      model,
		StatusCode: resp.StatusCode,
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
		pe.Message = string(bodyBytes)
		pe.Kind = providers.KindFromStatus(resp.StatusCode, pe.Message)
		return pe
	}

	apiErr := errResp.Error
	pe.Type = apiErr.Type
	pe.Message = apiErr.Message
	pe.Err = &apiErr

	switch {
	case apiErr.IsRateLimitError():
		pe.Kind = providers.ErrorKindRateLimit
	case apiErr.Type == ErrorTypeRequestTooBig:
		pe.Kind = providers.ErrorKindContextTooLarge
	default:
		pe.Kind = providers.KindFromStatus(resp.StatusCode, apiErr.Message)
	}

	return pe
}

// parseRateLimitHeaders estrae informazioni sul rate limit dagli headers
func (c *Client) parseRateLimitHeaders(headers http.Header) *RateLimitInfo {
	remaining := headers.Get("anthropic-ratelimit-requests-remaining")
	if remaining == "" {
		return nil
	}

	info := &RateLimitInfo{}
	info.RequestsRemaining, _ = strconv.Atoi(remaining)
	if v := headers.Get("anthropic-ratelimit-tokens-remaining"); v != "" {
		info.TokensRemaining, _ = strconv.Atoi(v)
	}
	if v := headers.Get("retry-after"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return info
}
