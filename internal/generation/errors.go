package generation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllModelsFailed indica che tutti i modelli interrogati hanno fallito
var ErrAllModelsFailed = errors.New("all models failed to generate response")

// ModelError è il fallimento di un singolo modello in una generazione multi-modello
type ModelError struct {
	Model string `json:"model"`
	Err   error  `json:"-"`
}

func (e ModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Model, e.Err)
}

// AllModelsFailedError contiene gli errori di ogni modello interrogato
type AllModelsFailedError struct {
	Errors []ModelError
}

func (e *AllModelsFailedError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, me := range e.Errors {
		parts[i] = me.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAllModelsFailed, strings.Join(parts, "; "))
}

// Is permette errors.Is(err, ErrAllModelsFailed)
func (e *AllModelsFailedError) Is(target error) bool {
	return target == ErrAllModelsFailed
}

// Unwrap espone gli errori dei singoli modelli a errors.Is/As
func (e *AllModelsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, me := range e.Errors {
		errs[i] = me.Err
	}
	return errs
}
