package agents

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_EmbeddedJSON(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"score\": 90, \"summary\": \"ok\", \"extra\": {\"a\": [1, 2]}}\n```"

	res := ParseResult(KindSyntax, raw)

	assert.Empty(t, res.ParseError)
	assert.NoError(t, res.Err())
	assert.Equal(t, "ok", res.Summary)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 90, *res.Score, 1e-9)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 90, "summary": "ok", "extra": {"a": [1, 2]}}`, string(out))
}

func TestParseResult_Fallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "The code looks fine to me."},
		{"broken json", "result: {\"score\": 90,"},
		{"braces reversed", "} nothing {"},
		{"invalid object", "{not json}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseResult(KindSecurity, tt.raw)

			assert.NotEmpty(t, res.ParseError)
			var perr *ParseError
			assert.True(t, errors.As(res.Err(), &perr))
			assert.Equal(t, tt.raw, res.Summary)
			require.NotNil(t, res.Score)
			assert.InDelta(t, DefaultScore, *res.Score, 1e-9)
			assert.Equal(t, TextReport{Summary: tt.raw}, res.Payload)

			out, err := json.Marshal(res)
			require.NoError(t, err)
			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(out, &decoded))
			assert.Equal(t, tt.raw, decoded["summary"])
			assert.Equal(t, 75.0, decoded["score"])
			assert.Contains(t, decoded, "parseError")
		})
	}
}

func TestParseResult_TypedPayloads(t *testing.T) {
	t.Run("security", func(t *testing.T) {
		res := ParseResult(KindSecurity, `{
			"vulnerabilities": [{"type": "injection", "severity": "critical", "location": "query()", "description": "sql injection", "mitigation": "bind params"}],
			"recommendations": [{"type": "input_validation", "description": "validate ids", "priority": "high"}],
			"score": 40
		}`)

		report, ok := res.Payload.(SecurityReport)
		require.True(t, ok)
		want := []Finding{{Type: "injection", Severity: "critical", Location: "query()", Description: "sql injection", Mitigation: "bind params"}}
		if diff := cmp.Diff(want, report.Findings()); diff != "" {
			t.Errorf("findings mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []Recommendation{{Type: "input_validation", Description: "validate ids", Priority: "high"}}, report.Recommendations())
	})

	t.Run("architecture nested recommendations", func(t *testing.T) {
		res := ParseResult(KindArchitecture, `{
			"architecture": {"patterns": ["layered"], "recommendations": ["split the service", "add interfaces"]},
			"modularity": {"score": 70, "issues": [], "suggestions": []},
			"scalability": {"score": 60, "concerns": [], "strategies": []}
		}`)

		report, ok := res.Payload.(ArchitectureReport)
		require.True(t, ok)
		assert.Nil(t, res.Score)
		assert.Equal(t, []Recommendation{{Text: "split the service"}, {Text: "add interfaces"}}, report.Recommendations())
		require.NotNil(t, report.Modularity.Score)
		assert.InDelta(t, 70, *report.Modularity.Score, 1e-9)
	})

	t.Run("improvement", func(t *testing.T) {
		res := ParseResult(KindImprovement, `{
			"improvements": [{"type": "refactor", "original_code": "a", "improved_code": "b", "explanation": "c"}],
			"suggestions": [{"type": "best_practice", "description": "use context", "implementation": "pass ctx"}],
			"overall_quality": "good"
		}`)

		report, ok := res.Payload.(ImprovementReport)
		require.True(t, ok)
		assert.Len(t, report.Improvements, 1)
		assert.Equal(t, "use context", report.Recommendations()[0].Description)
		assert.Empty(t, report.Findings())
	})

	t.Run("schema mismatch falls back to generic", func(t *testing.T) {
		res := ParseResult(KindSyntax, `{
			"issues": [{"severity": "high", "line": "12", "message": "missing import"}, "loose text"],
			"suggestions": ["run gofmt"],
			"score": 55
		}`)

		report, ok := res.Payload.(GenericReport)
		require.True(t, ok)
		assert.Empty(t, res.ParseError)
		require.Len(t, report.Findings(), 2)
		assert.Equal(t, "high", report.Findings()[0].Severity)
		assert.Equal(t, "missing import", report.Findings()[0].Text())
		assert.Zero(t, report.Findings()[0].Line)
		assert.Equal(t, "loose text", report.Findings()[1].Text())
		assert.Equal(t, []Recommendation{{Text: "run gofmt"}}, report.Recommendations())
	})

	t.Run("custom agent kind", func(t *testing.T) {
		res := ParseResult("", `{"issues": [{"severity": "low", "message": "nit"}]}`)
		assert.Equal(t, GenericReport{Items: []Finding{{Severity: "low", Message: "nit"}}}, res.Payload)
	})
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityRank("critical"), SeverityRank("HIGH"))
	assert.Greater(t, SeverityRank("high"), SeverityRank("medium"))
	assert.Greater(t, SeverityRank("medium"), SeverityRank("low"))
	assert.Greater(t, SeverityRank("low"), SeverityRank("whatever"))
	assert.Zero(t, SeverityRank(""))
}
