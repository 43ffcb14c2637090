package generation

import (
	"sort"
	"strings"
)

// Consensus restituisce l'accordo tra le risposte come media della
// similarità di Jaccard su tutte le coppie. Con meno di due risposte vale 1.
func Consensus(texts []string) float64 {
	if len(texts) < 2 {
		return 1.0
	}

	sets := make([]map[string]struct{}, len(texts))
	for i, t := range texts {
		sets[i] = words(t)
	}

	var sum float64
	comparisons := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccard(sets[i], sets[j])
			comparisons++
		}
	}
	return sum / float64(comparisons)
}

// Similarity è la similarità di Jaccard tra gli insiemi di parole dei due testi
func Similarity(a, b string) float64 {
	return jaccard(words(a), words(b))
}

func words(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// rank ordina le risposte per confidenza decrescente mantenendo l'ordine
// di selezione a parità di confidenza
func rank(responses []Response) []Response {
	ranked := append([]Response(nil), responses...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// combine costruisce il risultato multi-modello dalle risposte riuscite
func combine(responses []Response) *Result {
	ranked := rank(responses)
	primary := ranked[0]

	texts := make([]string, len(ranked))
	tokens := 0
	for i, r := range ranked {
		texts[i] = r.Text
		tokens += r.Tokens
	}

	return &Result{
		Response:     primary.Text,
		Model:        primary.Model,
		Tokens:       tokens,
		Confidence:   primary.Confidence,
		Alternatives: ranked[1:],
		Consensus:    Consensus(texts),
	}
}
