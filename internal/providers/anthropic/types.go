package anthropic

import "time"

// ContentBlockType definisce i tipi di blocco di contenuto
type ContentBlockType string

const (
	ContentBlockTypeText ContentBlockType = "text"
)

// MessageRole definisce i ruoli dei messaggi
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// StopReason indica perché il modello ha smesso di generare
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// MessagesRequest rappresenta una richiesta all'API Messages
type MessagesRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Metadata      *Metadata `json:"metadata,omitempty"`
}

// Message rappresenta un messaggio nella conversazione
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock è un blocco di contenuto testuale
type ContentBlock struct {
	Type ContentBlockType `json:"type"`
	Text string           `json:"text,omitempty"`
}

// Metadata contiene metadati opzionali per la richiesta
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessagesResponse rappresenta la risposta dall'API Messages
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // "message"
	Role       MessageRole    `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason StopReason     `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage"`
}

// Usage contiene informazioni sull'utilizzo dei token
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse rappresenta una risposta di errore dall'API
type ErrorResponse struct {
	Type  string `json:"type"` // "error"
	Error Error  `json:"error"`
}

// Error contiene i dettagli dell'errore
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Anthropic API error types
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeRequestTooBig  = "request_too_large"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypeAPIError       = "api_error"
	ErrorTypeOverloaded     = "overloaded_error"
)

// Anthropic API constants
const (
	DefaultAPIVersion = "2023-06-01"
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultMaxTokens  = 4096

	// DefaultConfidence è la confidenza attribuita alle risposte Claude
	DefaultConfidence = 0.85
)

// NewTextContentBlock crea un blocco di testo
func NewTextContentBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeText, Text: text}
}

// GetAllText concatena tutto il testo dai blocchi di contenuto
func (m *MessagesResponse) GetAllText() string {
	var text string
	for _, block := range m.Content {
		if block.Type == ContentBlockTypeText {
			text += block.Text
		}
	}
	return text
}

// Validate valida la richiesta
func (r *MessagesRequest) Validate() error {
	if r.Model == "" {
		return &Error{Type: ErrorTypeInvalidRequest, Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &Error{Type: ErrorTypeInvalidRequest, Message: "messages is required"}
	}
	if r.MaxTokens <= 0 {
		return &Error{Type: ErrorTypeInvalidRequest, Message: "max_tokens must be positive"}
	}

	for i, msg := range r.Messages {
		if msg.Role != MessageRoleUser && msg.Role != MessageRoleAssistant {
			return &Error{
				Type:    ErrorTypeInvalidRequest,
				Message: "message role must be 'user' or 'assistant'",
			}
		}

		// Il primo messaggio deve essere user
		if i == 0 && msg.Role != MessageRoleUser {
			return &Error{
				Type:    ErrorTypeInvalidRequest,
				Message: "first message must have role 'user'",
			}
		}
	}

	return nil
}

// Error implementa l'interfaccia error
func (e *Error) Error() string {
	return e.Message
}

// IsRateLimitError verifica se l'errore è di rate limit
func (e *Error) IsRateLimitError() bool {
	return e.Type == ErrorTypeRateLimit
}

// RateLimitInfo contiene informazioni sul rate limiting
type RateLimitInfo struct {
	RequestsRemaining int
	TokensRemaining   int
	RetryAfter        time.Duration
}
