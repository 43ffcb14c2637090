// Package mocks contiene implementazioni fittizie usate nei test.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
)

// MockResponse è una risposta programmata del provider
type MockResponse struct {
	Content    string
	TokensUsed int
	Confidence float64
	Error      error
}

// MockProvider è un provider LLM fittizio. Le risposte vengono consumate in
// ordine; l'ultima si ripete quando la coda è esaurita.
type MockProvider struct {
	mu sync.Mutex

	name         string
	responses    []MockResponse
	latency      time.Duration
	healthErr    error
	requestCount int
	requests     []*providers.ChatRequest
}

// NewMockProvider crea un mock che risponde sempre con content
func NewMockProvider(name, content string) *MockProvider {
	return &MockProvider{
		name:      name,
		responses: []MockResponse{{Content: content, TokensUsed: 50}},
	}
}

// NewFailingProvider crea un mock che fallisce sempre con err
func NewFailingProvider(name string, err error) *MockProvider {
	return &MockProvider{
		name:      name,
		responses: []MockResponse{{Error: err}},
	}
}

// WithResponses sostituisce la coda di risposte
func (m *MockProvider) WithResponses(responses ...MockResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	return m
}

// WithLatency imposta un ritardo per ogni chiamata
func (m *MockProvider) WithLatency(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
	return m
}

// WithHealthError fa fallire HealthCheck
func (m *MockProvider) WithHealthError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// Name restituisce il nome del provider
func (m *MockProvider) Name() string {
	return m.name
}

// ChatCompletion restituisce la prossima risposta programmata
func (m *MockProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	m.mu.Lock()
	m.requestCount++
	m.requests = append(m.requests, req)

	var resp MockResponse
	if len(m.responses) > 0 {
		resp = m.responses[0]
		if len(m.responses) > 1 {
			m.responses = m.responses[1:]
		}
	}
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	confidence := resp.Confidence
	if confidence == 0 {
		confidence = 0.8
	}

	return &providers.ChatResponse{
		ID:    "mock-" + m.name,
		Model: req.Model,
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: providers.RoleAssistant, Content: resp.Content},
			FinishReason: "stop",
		}},
		Usage:      providers.Usage{TotalTokens: resp.TokensUsed},
		Confidence: confidence,
	}, nil
}

// HealthCheck restituisce l'errore configurato
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

// RequestCount restituisce il numero di chiamate a ChatCompletion
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastRequest restituisce l'ultima richiesta ricevuta
func (m *MockProvider) LastRequest() *providers.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Requests restituisce tutte le richieste ricevute
func (m *MockProvider) Requests() []*providers.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*providers.ChatRequest(nil), m.requests...)
}

// StaticConnector restituisce sempre il provider registrato per l'id del modello
type StaticConnector struct {
	Providers map[string]providers.Provider
	Err       error
}

// Build implementa registry.Connector
func (c *StaticConnector) Build(spec providers.Spec, _ providers.Config) (providers.Provider, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if p, ok := c.Providers[spec.ModelID]; ok {
		return p, nil
	}
	return NewMockProvider(spec.ModelID, "ok"), nil
}
