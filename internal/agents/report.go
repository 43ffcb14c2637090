package agents

import (
	"encoding/json"
	"strings"
)

// Payload è la vista tipizzata del risultato di un agente
type Payload interface {
	Findings() []Finding
	Recommendations() []Recommendation
}

// Finding è un problema segnalato: issue, vulnerabilità o collo di bottiglia
type Finding struct {
	Type         string `json:"type,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
	Location     string `json:"location,omitempty"`
	Message      string `json:"message,omitempty"`
	Description  string `json:"description,omitempty"`
	Impact       string `json:"impact,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
	Mitigation   string `json:"mitigation,omitempty"`
	CVEReference string `json:"cve_reference,omitempty"`

	// Source è l'agente che ha prodotto il finding
	Source string `json:"source,omitempty"`
}

// Text restituisce la descrizione del finding
func (f Finding) Text() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Description
}

// SeverityRank ordina le severità: critical > high > medium > low > sconosciuta
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// Recommendation è un suggerimento strutturato o testuale
type Recommendation struct {
	Type           string `json:"type,omitempty"`
	Description    string `json:"description,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Implementation string `json:"implementation,omitempty"`
	Text           string `json:"text,omitempty"`
	Source         string `json:"source,omitempty"`
}

func textRecommendations(items []string) []Recommendation {
	out := make([]Recommendation, 0, len(items))
	for _, s := range items {
		out = append(out, Recommendation{Text: s})
	}
	return out
}

// SyntaxReport è il risultato del syntax-analyzer
type SyntaxReport struct {
	Issues  []Finding `json:"issues"`
	Summary string    `json:"summary"`
	Score   *float64  `json:"score,omitempty"`
}

func (r SyntaxReport) Findings() []Finding               { return r.Issues }
func (r SyntaxReport) Recommendations() []Recommendation { return nil }

// Optimization è un'ottimizzazione proposta dal performance-analyzer
type Optimization struct {
	Type                string `json:"type"`
	Description         string `json:"description"`
	ExpectedImprovement string `json:"expected_improvement"`
}

// PerformanceReport è il risultato del performance-analyzer
type PerformanceReport struct {
	Bottlenecks   []Finding      `json:"bottlenecks"`
	Optimizations []Optimization `json:"optimizations"`
	Summary       string         `json:"summary,omitempty"`
	Score         *float64       `json:"score,omitempty"`
}

func (r PerformanceReport) Findings() []Finding               { return r.Bottlenecks }
func (r PerformanceReport) Recommendations() []Recommendation { return nil }

// SecurityReport è il risultato del security-analyzer
type SecurityReport struct {
	Vulnerabilities []Finding        `json:"vulnerabilities"`
	Advice          []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary,omitempty"`
	Score           *float64         `json:"score,omitempty"`
}

func (r SecurityReport) Findings() []Finding               { return r.Vulnerabilities }
func (r SecurityReport) Recommendations() []Recommendation { return r.Advice }

// Improvement è una modifica di codice proposta
type Improvement struct {
	Type         string `json:"type"`
	OriginalCode string `json:"original_code"`
	ImprovedCode string `json:"improved_code"`
	Explanation  string `json:"explanation"`
}

// ImprovementReport è il risultato del code-improver
type ImprovementReport struct {
	Improvements   []Improvement    `json:"improvements"`
	Suggestions    []Recommendation `json:"suggestions"`
	OverallQuality string           `json:"overall_quality"`
}

func (r ImprovementReport) Findings() []Finding               { return nil }
func (r ImprovementReport) Recommendations() []Recommendation { return r.Suggestions }

// ArchitectureReport è il risultato dell'architecture-analyzer
type ArchitectureReport struct {
	Architecture struct {
		Patterns        []string `json:"patterns"`
		Strengths       []string `json:"strengths"`
		Weaknesses      []string `json:"weaknesses"`
		Recommendations []string `json:"recommendations"`
	} `json:"architecture"`
	Modularity struct {
		Score       *float64 `json:"score,omitempty"`
		Issues      []string `json:"issues"`
		Suggestions []string `json:"suggestions"`
	} `json:"modularity"`
	Scalability struct {
		Score      *float64 `json:"score,omitempty"`
		Concerns   []string `json:"concerns"`
		Strategies []string `json:"strategies"`
	} `json:"scalability"`
}

func (r ArchitectureReport) Findings() []Finding { return nil }

func (r ArchitectureReport) Recommendations() []Recommendation {
	return textRecommendations(r.Architecture.Recommendations)
}

// FunctionDoc documenta una funzione
type FunctionDoc struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
	Returns     string   `json:"returns"`
	Examples    []string `json:"examples"`
}

// ClassDoc documenta un tipo
type ClassDoc struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Methods     []string `json:"methods"`
	Properties  []string `json:"properties"`
}

// DocumentationReport è il risultato del documentation-agent
type DocumentationReport struct {
	Documentation struct {
		Functions []FunctionDoc `json:"functions"`
		Classes   []ClassDoc    `json:"classes"`
	} `json:"documentation"`
	Comments []struct {
		Location string `json:"location"`
		Comment  string `json:"comment"`
		Type     string `json:"type"`
	} `json:"comments"`
	ReadmeSections []struct {
		Section string `json:"section"`
		Content string `json:"content"`
	} `json:"readme_sections"`
}

func (r DocumentationReport) Findings() []Finding               { return nil }
func (r DocumentationReport) Recommendations() []Recommendation { return nil }

// TextReport è il risultato di una risposta senza JSON
type TextReport struct {
	Summary string `json:"summary"`
}

func (r TextReport) Findings() []Finding               { return nil }
func (r TextReport) Recommendations() []Recommendation { return nil }

// GenericReport raccoglie finding e raccomandazioni da risposte che non
// rispettano lo schema dell'agente
type GenericReport struct {
	Items  []Finding
	Advice []Recommendation
}

func (r GenericReport) Findings() []Finding               { return r.Items }
func (r GenericReport) Recommendations() []Recommendation { return r.Advice }

func decodePayload(kind Kind, body []byte, fields map[string]json.RawMessage) Payload {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindSyntax:
		var r SyntaxReport
		err = json.Unmarshal(body, &r)
		p = r
	case KindPerformance:
		var r PerformanceReport
		err = json.Unmarshal(body, &r)
		p = r
	case KindSecurity:
		var r SecurityReport
		err = json.Unmarshal(body, &r)
		p = r
	case KindImprovement:
		var r ImprovementReport
		err = json.Unmarshal(body, &r)
		p = r
	case KindArchitecture:
		var r ArchitectureReport
		err = json.Unmarshal(body, &r)
		p = r
	case KindDocumentation:
		var r DocumentationReport
		err = json.Unmarshal(body, &r)
		p = r
	default:
		return genericReport(fields)
	}
	if err != nil {
		return genericReport(fields)
	}
	return p
}

var (
	findingKeys        = []string{"issues", "vulnerabilities", "bottlenecks"}
	recommendationKeys = []string{"recommendations", "suggestions"}
)

// genericReport legge i campi noti elemento per elemento, ignorando
// quelli con un tipo inatteso
func genericReport(fields map[string]json.RawMessage) GenericReport {
	var r GenericReport
	for _, key := range findingKeys {
		for _, item := range rawItems(fields[key]) {
			var m map[string]interface{}
			if json.Unmarshal(item, &m) != nil {
				var s string
				if json.Unmarshal(item, &s) == nil {
					r.Items = append(r.Items, Finding{Message: s})
				}
				continue
			}
			r.Items = append(r.Items, findingFromMap(m))
		}
	}
	for _, key := range recommendationKeys {
		for _, item := range rawItems(fields[key]) {
			var s string
			if json.Unmarshal(item, &s) == nil {
				r.Advice = append(r.Advice, Recommendation{Text: s})
				continue
			}
			var m map[string]interface{}
			if json.Unmarshal(item, &m) == nil {
				r.Advice = append(r.Advice, Recommendation{
					Type:           str(m, "type"),
					Description:    str(m, "description"),
					Priority:       str(m, "priority"),
					Implementation: str(m, "implementation"),
				})
			}
		}
	}
	return r
}

func rawItems(raw json.RawMessage) []json.RawMessage {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	return items
}

func findingFromMap(m map[string]interface{}) Finding {
	return Finding{
		Type:         str(m, "type"),
		Severity:     str(m, "severity"),
		Line:         num(m, "line"),
		Column:       num(m, "column"),
		Location:     str(m, "location"),
		Message:      str(m, "message"),
		Description:  str(m, "description"),
		Impact:       str(m, "impact"),
		Suggestion:   str(m, "suggestion"),
		Mitigation:   str(m, "mitigation"),
		CVEReference: str(m, "cve_reference"),
	}
}

func str(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func num(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
