package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL è l'endpoint pubblico OpenAI
	DefaultBaseURL = "https://api.openai.com"

	// DefaultConfidence è la confidenza attribuita alle risposte OpenAI
	DefaultConfidence = 0.8
)

// Client implementa un client OpenAI-compatible
type Client struct {
	*providers.BaseProvider
	httpClient *resty.Client
	model      string
	confidence float64
}

// NewClient crea un nuovo client OpenAI per il modello indicato
func NewClient(name, model string, cfg providers.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	client := &Client{
		BaseProvider: providers.NewBaseProvider(name, cfg),
		httpClient:   resty.New(),
		model:        model,
		confidence:   DefaultConfidence,
	}

	client.configureHTTPClient()
	return client
}

// Build è il providers.Builder per i modelli OpenAI
func Build(spec providers.Spec, cfg providers.Config) (providers.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: missing API key for model %s", spec.ModelID)
	}
	return NewClient(spec.ModelID, spec.Model, cfg), nil
}

// WithConfidence imposta la confidenza riportata nelle risposte
func (c *Client) WithConfidence(confidence float64) *Client {
	c.confidence = confidence
	return c
}

// configureHTTPClient configura il client HTTP.
// Nessun retry a questo livello: i tentativi sono gestiti dal generation engine.
func (c *Client) configureHTTPClient() {
	c.httpClient.
		SetBaseURL(c.GetBaseURL()).
		SetTimeout(c.GetTimeout()).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if c.GetAPIKey() != "" {
		c.httpClient.SetAuthToken(c.GetAPIKey())
	}

	c.httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("provider", c.Name()).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("OpenAI API request")
		return nil
	})

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.Name()).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("OpenAI API response")
		return nil
	})
}

// ChatCompletion esegue una richiesta di chat completion
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	openaiReq := c.convertToOpenAIRequest(req)

	var openaiResp ChatCompletionResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(openaiReq).
		SetResult(&openaiResp).
		SetError(&errResp).
		Post("/v1/chat/completions")

	if err != nil {
		return nil, &providers.ProviderError{
			Provider: c.Name(),
			Model:    openaiReq.Model,
			Err:      err,
		}
	}

	if resp.IsError() {
		return nil, c.handleErrorResponse(openaiReq.Model, resp.StatusCode(), &errResp)
	}

	return c.convertFromOpenAIResponse(&openaiResp), nil
}

// HealthCheck verifica lo stato del provider
func (c *Client) HealthCheck(ctx context.Context) error {
	var result ModelsResponse
	var errResp ErrorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Get("/v1/models")

	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if resp.IsError() {
		return c.handleErrorResponse("", resp.StatusCode(), &errResp)
	}

	return nil
}

// convertToOpenAIRequest converte una richiesta generica in formato OpenAI
func (c *Client) convertToOpenAIRequest(req *providers.ChatRequest) *ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	openaiReq := &ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		User:        req.User,
		Messages:    make([]ChatMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		openaiReq.Messages[i] = ChatMessage{Role: msg.Role, Content: msg.Content}
	}

	return openaiReq
}

// convertFromOpenAIResponse converte una risposta OpenAI in formato generico
func (c *Client) convertFromOpenAIResponse(resp *ChatCompletionResponse) *providers.ChatResponse {
	choices := make([]providers.Choice, len(resp.Choices))
	for i, choice := range resp.Choices {
		choices[i] = providers.Choice{
			Index:        choice.Index,
			Message:      providers.Message{Role: choice.Message.Role, Content: choice.Message.Content},
			FinishReason: choice.FinishReason,
		}
	}

	return &providers.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Confidence: c.confidence,
	}
}

// handleErrorResponse trasforma la risposta di errore in un ProviderError classificato
func (c *Client) handleErrorResponse(model string, statusCode int, errResp *ErrorResponse) error {
	detail := errResp.Error

	kind := providers.KindFromStatus(statusCode, detail.Message)
	switch detail.Code {
	case CodeContextLengthExceeded:
		kind = providers.ErrorKindContextTooLarge
	case CodeRateLimitExceeded, CodeInsufficientQuota:
		kind = providers.ErrorKindRateLimit
	}

	message := detail.Message
	if message == "" {
		message = fmt.Sprintf("API error: status %d", statusCode)
	}

	return &providers.ProviderError{
		Provider:   c.Name(),
		Model:      model,
		StatusCode: statusCode,
		Kind:       kind,
		Type:       detail.Type,
		Message:    message,
	}
}
