package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/rs/zerolog/log"
)

// Provider adatta il client Anthropic all'interfaccia providers.Provider
type Provider struct {
	name       string
	model      string
	maxTokens  int
	confidence float64
	client     *Client
}

// NewProvider crea un nuovo provider Anthropic per il modello indicato
func NewProvider(name, model string, maxTokens int, cfg providers.Config) *Provider {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Provider{
		name:       name,
		model:      model,
		maxTokens:  maxTokens,
		confidence: DefaultConfidence,
		client: NewClient(
			cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithTimeout(cfg.Timeout),
		),
	}
}

// Build è il providers.Builder per i modelli Claude
func Build(spec providers.Spec, cfg providers.Config) (providers.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key for model %s", spec.ModelID)
	}
	return NewProvider(spec.ModelID, spec.Model, spec.MaxTokens, cfg), nil
}

// Name restituisce il nome del provider
func (p *Provider) Name() string {
	return p.name
}

// ChatCompletion converte la richiesta generica nel formato Messages
func (p *Provider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	anthropicReq := p.convertRequest(req)

	log.Debug().
		Str("model", anthropicReq.Model).
		Int("max_tokens", anthropicReq.MaxTokens).
		Int("messages", len(anthropicReq.Messages)).
		Msg("Sending request to Anthropic")

	resp, err := p.client.CreateMessage(ctx, anthropicReq)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("id", resp.ID).
		Str("stop_reason", string(resp.StopReason)).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Received response from Anthropic")

	return &providers.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: providers.RoleAssistant, Content: resp.GetAllText()},
			FinishReason: string(resp.StopReason),
		}},
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Confidence: p.confidence,
	}, nil
}

// HealthCheck esegue una richiesta minima per verificare la connettività
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.CreateMessage(ctx, &MessagesRequest{
		Model:     p.model,
		MaxTokens: 10,
		Messages: []Message{
			{Role: MessageRoleUser, Content: []ContentBlock{NewTextContentBlock("Hi")}},
		},
	})
	return err
}

// convertRequest sposta i messaggi system nel campo dedicato e
// unisce i messaggi consecutivi con lo stesso ruolo
func (p *Provider) convertRequest(req *providers.ChatRequest) *MessagesRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}

	out := &MessagesRequest{
		Model:         model,
		MaxTokens:     p.maxTokens,
		Temperature:   req.Temperature,
		StopSequences: req.Stop,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		out.MaxTokens = *req.MaxTokens
	}
	if req.User != "" {
		out.Metadata = &Metadata{UserID: req.User}
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		role := MessageRoleUser
		if msg.Role == providers.RoleAssistant {
			role = MessageRoleAssistant
		}

		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			out.Messages[n-1].Content = append(out.Messages[n-1].Content, NewTextContentBlock(msg.Content))
			continue
		}
		out.Messages = append(out.Messages, Message{
			Role:    role,
			Content: []ContentBlock{NewTextContentBlock(msg.Content)},
		})
	}
	out.System = strings.Join(system, "\n\n")

	return out
}
