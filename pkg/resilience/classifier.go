// Package resilience classifica gli errori dei provider e decide come
// ritentare una generazione fallita.
package resilience

import (
	"errors"
	"strings"

	"github.com/biodoia/goleapcode/internal/providers"
)

// Kind è il tipo di errore usato per scegliere la strategia di recovery
type Kind = providers.ErrorKind

const (
	KindRateLimit       = providers.ErrorKindRateLimit
	KindContextTooLarge = providers.ErrorKindContextTooLarge
	KindAPIError        = providers.ErrorKindAPI
)

// Classify restituisce il tipo di errore. Usa il Kind di un ProviderError
// quando presente, altrimenti ispeziona il messaggio.
func Classify(err error) Kind {
	if err == nil {
		return KindAPIError
	}

	var perr *providers.ProviderError
	if errors.As(err, &perr) && perr.Kind != providers.ErrorKindUnknown {
		return perr.Kind
	}

	return classifyMessage(err.Error())
}

func classifyMessage(message string) Kind {
	message = strings.ToLower(message)

	switch {
	case strings.Contains(message, "rate limit") || strings.Contains(message, "quota"):
		return KindRateLimit
	case strings.Contains(message, "context") || strings.Contains(message, "token"):
		return KindContextTooLarge
	default:
		return KindAPIError
	}
}
