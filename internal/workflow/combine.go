package workflow

import (
	"sort"
	"strings"

	"github.com/biodoia/goleapcode/internal/agents"
)

const summarySeparator = "\n\n"

// Combined è la sintesi dei risultati di un workflow
type Combined struct {
	Workflow        string                  `json:"workflow"`
	TotalSteps      int                     `json:"totalSteps"`
	CompletedSteps  int                     `json:"completedSteps"`
	Summary         string                  `json:"summary"`
	Recommendations []agents.Recommendation `json:"recommendations"`
	Priority        []agents.Finding        `json:"priority"`
	OverallScore    *float64                `json:"overallScore,omitempty"`
}

// Combine unisce i risultati degli step riusciti, nell'ordine dichiarato.
// OverallScore è la media dei punteggi solo se ogni step ne riporta uno.
func Combine(w Workflow, results []*agents.ExecutionResult) Combined {
	c := Combined{
		Workflow:        w.Name,
		TotalSteps:      len(w.Steps),
		CompletedSteps:  len(results),
		Recommendations: []agents.Recommendation{},
		Priority:        []agents.Finding{},
	}

	summaries := make([]string, 0, len(results))
	var (
		total  float64
		scored int
	)
	for _, r := range results {
		summaries = append(summaries, r.AgentName+": "+r.Result.SummaryOrDefault())

		collected := r.Result.Collected()
		for _, rec := range collected.Advice {
			rec.Source = r.Agent
			c.Recommendations = append(c.Recommendations, rec)
		}
		for _, f := range collected.Items {
			f.Source = r.Agent
			c.Priority = append(c.Priority, f)
		}

		if r.Result.Score != nil {
			total += *r.Result.Score
			scored++
		}
	}
	c.Summary = strings.Join(summaries, summarySeparator)

	sort.SliceStable(c.Priority, func(i, j int) bool {
		return agents.SeverityRank(c.Priority[i].Severity) > agents.SeverityRank(c.Priority[j].Severity)
	})

	if scored > 0 && scored == len(results) {
		avg := total / float64(scored)
		c.OverallScore = &avg
	}
	return c
}
