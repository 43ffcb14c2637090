// Package gemini adatta il Google GenAI SDK all'interfaccia providers.Provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultConfidence è la confidenza attribuita alle risposte Gemini
const DefaultConfidence = 0.8

// Client implementa providers.Provider sopra genai.Client
type Client struct {
	name   string
	model  string
	client *genai.Client
}

// NewClient crea un client Gemini per il modello indicato
func NewClient(ctx context.Context, name, model string, cfg providers.Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{name: name, model: model, client: client}, nil
}

// Build è il providers.Builder per i modelli Gemini
func Build(spec providers.Spec, cfg providers.Config) (providers.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing API key for model %s", spec.ModelID)
	}
	return NewClient(context.Background(), spec.ModelID, spec.Model, cfg)
}

// Name restituisce il nome del provider
func (c *Client) Name() string {
	return c.name
}

// ChatCompletion esegue GenerateContent con i messaggi system come SystemInstruction
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	contents, config := convertRequest(req)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, c.wrapError(model, err)
	}

	out := &providers.ChatResponse{
		Model: model,
		Choices: []providers.Choice{{
			Message: providers.Message{Role: providers.RoleAssistant, Content: resp.Text()},
		}},
		Confidence: DefaultConfidence,
	}
	if resp.UsageMetadata != nil {
		out.Usage = providers.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	log.Debug().
		Str("provider", c.name).
		Str("model", model).
		Int("total_tokens", out.Usage.TotalTokens).
		Msg("GenAI response")

	return out, nil
}

// HealthCheck esegue una generazione minima
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text("Hi"), &genai.GenerateContentConfig{MaxOutputTokens: 8})
	if err != nil {
		return c.wrapError(c.model, err)
	}
	return nil
}

func convertRequest(req *providers.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		config.Temperature = &t
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		config.StopSequences = req.Stop
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			system = append(system, msg.Content)
		case providers.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	return contents, config
}

// wrapError converte gli errori GenAI in ProviderError classificati
func (c *Client) wrapError(model string, err error) error {
	pe := &providers.ProviderError{Provider: c.name, Model: model, Err: err}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.Code
		pe.Type = apiErr.Status
		pe.Message = apiErr.Message
		pe.Kind = providers.KindFromStatus(apiErr.Code, apiErr.Message)
		if apiErr.Status == "RESOURCE_EXHAUSTED" {
			pe.Kind = providers.ErrorKindRateLimit
		}
	}

	return pe
}
