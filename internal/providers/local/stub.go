package local

import (
	"context"
	"fmt"

	"github.com/biodoia/goleapcode/internal/providers"
)

// StubLoader restituisce handle che producono risposte deterministiche
// senza eseguire alcun modello. È il loader di default quando non è
// configurato un runner.
type StubLoader struct{}

// Load implementa Loader
func (StubLoader) Load(ctx context.Context, spec providers.Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &stubHandle{modelID: spec.ModelID}, nil
}

type stubHandle struct {
	modelID string
}

const stubTokens = 100

func (h *stubHandle) Generate(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := lastUserMessage(req.Messages)
	if r := []rune(prompt); len(r) > 50 {
		prompt = string(r[:50])
	}

	return &providers.ChatResponse{
		Model: h.modelID,
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: providers.RoleAssistant, Content: fmt.Sprintf("Mock response from %s: %s...", h.modelID, prompt)},
			FinishReason: "stop",
		}},
		Usage:      providers.Usage{CompletionTokens: stubTokens, TotalTokens: stubTokens},
		Confidence: DefaultConfidence,
	}, nil
}

func (h *stubHandle) Close() error { return nil }

func lastUserMessage(msgs []providers.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == providers.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
