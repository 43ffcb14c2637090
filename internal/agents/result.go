package agents

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	// DefaultScore è il punteggio assegnato a una risposta senza JSON valido
	DefaultScore = 75.0

	defaultSummary = "Analysis completed"
)

var errNoJSON = errors.New("no JSON object found in response")

// ParseError segnala che la risposta non conteneva un oggetto JSON valido.
// Non interrompe l'esecuzione: il risultato viene degradato a testo libero.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return "parse agent response: " + e.Message
}

// Result è la risposta interpretata di un agente. Fields conserva i campi
// JSON così come restituiti dal modello; Payload ne è la vista tipizzata.
type Result struct {
	Fields  map[string]json.RawMessage
	Payload Payload

	Summary    string
	Score      *float64
	Raw        string
	ParseError string
}

// MarshalJSON serializza i campi originali senza perdite
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// Err restituisce un *ParseError se la risposta è stata degradata
func (r Result) Err() error {
	if r.ParseError == "" {
		return nil
	}
	return &ParseError{Message: r.ParseError}
}

// SummaryOrDefault restituisce il riassunto o un testo generico
func (r Result) SummaryOrDefault() string {
	if r.Summary == "" {
		return defaultSummary
	}
	return r.Summary
}

// Collected legge issues, vulnerabilities e bottlenecks, insieme a
// recommendations e suggestions, dai campi di primo livello qualunque sia
// l'agente. Le raccomandazioni annidate dell'architecture-analyzer si
// aggiungono in coda.
func (r Result) Collected() GenericReport {
	c := genericReport(r.Fields)
	if a, ok := r.Payload.(ArchitectureReport); ok {
		c.Advice = append(c.Advice, a.Recommendations()...)
	}
	return c
}

// Field decodifica un campo arbitrario del risultato in v
func (r Result) Field(name string, v interface{}) bool {
	raw, ok := r.Fields[name]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// ParseResult estrae l'oggetto JSON compreso tra la prima '{' e l'ultima '}'
// della risposta. Se manca o non è valido restituisce un risultato testuale
// con punteggio DefaultScore e ParseError valorizzato.
func ParseResult(kind Kind, raw string) Result {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fallbackResult(raw, errNoJSON)
	}

	body := []byte(raw[start : end+1])
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fallbackResult(raw, err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	res := Result{
		Fields:  fields,
		Payload: decodePayload(kind, body, fields),
		Raw:     raw,
	}
	res.Field("summary", &res.Summary)

	var score float64
	if res.Field("score", &score) {
		res.Score = &score
	}
	return res
}

func fallbackResult(raw string, cause error) Result {
	score := DefaultScore
	res := Result{
		Payload:    TextReport{Summary: raw},
		Summary:    raw,
		Score:      &score,
		Raw:        raw,
		ParseError: cause.Error(),
	}
	res.Fields = map[string]json.RawMessage{
		"summary":    mustRaw(raw),
		"score":      mustRaw(score),
		"raw":        mustRaw(raw),
		"parseError": mustRaw(res.ParseError),
	}
	return res
}

func mustRaw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
