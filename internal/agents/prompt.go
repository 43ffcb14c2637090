package agents

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

const defaultPromptTemplate = `Analyze the following {{.Language}} code:

{{.Input}}

{{if .Context}}Additional context:
{{.Context}}
{{end}}{{if .Issues}}Known issues:
{{.Issues}}
{{end}}

Please provide a thorough analysis following the specified format.`

const unknownLanguage = "unknown"

// PromptData sono i valori disponibili nel template del prompt
type PromptData struct {
	Language string
	Input    string
	Context  string
	Issues   string
}

func newPromptData(input string, opts RunOptions) (PromptData, error) {
	data := PromptData{
		Language: opts.Language,
		Input:    input,
		Context:  opts.Context,
	}
	if data.Language == "" {
		data.Language = unknownLanguage
	}
	if opts.Issues != nil {
		raw, err := json.MarshalIndent(opts.Issues, "", "  ")
		if err != nil {
			return data, fmt.Errorf("encode issues: %w", err)
		}
		if s := string(raw); s != "null" && s != "[]" && s != "{}" {
			data.Issues = s
		}
	}
	return data, nil
}

func parseTemplate(a Agent) (*template.Template, error) {
	text := a.PromptTemplate
	if text == "" {
		text = defaultPromptTemplate
	}
	tmpl, err := template.New(a.ID).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s prompt template: %v", ErrInvalidAgent, a.ID, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data PromptData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
