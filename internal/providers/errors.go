package providers

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind è la classificazione strutturata di un errore del provider
type ErrorKind string

const (
	ErrorKindUnknown         ErrorKind = ""
	ErrorKindRateLimit       ErrorKind = "rate_limit"
	ErrorKindContextTooLarge ErrorKind = "context_too_large"
	ErrorKindAPI             ErrorKind = "api_error"
)

// ProviderError è l'errore restituito da un adapter quando la chiamata fallisce
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Kind       ErrorKind
	Type       string // tipo di errore dichiarato dal vendor
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString("/")
		b.WriteString(e.Model)
	}
	b.WriteString(": ")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "status %d: ", e.StatusCode)
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("request failed")
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " (type: %s)", e.Type)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// contextMarkers sono frammenti che i vendor usano per segnalare un prompt troppo lungo
var contextMarkers = []string{
	"context length",
	"context_length",
	"maximum context",
	"context window",
	"prompt is too long",
	"too many tokens",
}

// KindFromStatus deriva il tipo di errore dallo status HTTP e dal messaggio del vendor
func KindFromStatus(status int, message string) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case status == http.StatusRequestEntityTooLarge:
		return ErrorKindContextTooLarge
	case status == http.StatusBadRequest:
		lower := strings.ToLower(message)
		for _, marker := range contextMarkers {
			if strings.Contains(lower, marker) {
				return ErrorKindContextTooLarge
			}
		}
		return ErrorKindAPI
	case status >= 400:
		return ErrorKindAPI
	default:
		return ErrorKindUnknown
	}
}
