// Package contextmgr riduce un contesto troppo grande per il modello
// mantenendo i frammenti più rilevanti rispetto al prompt.
package contextmgr

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxContextSize = 100000
	DefaultChunkSize      = 8000

	// percentuale di chunk mantenuti dopo il ranking
	keepPercent = 30

	chunkSeparator = "\n\n"

	defaultHistorySize = 100
)

// Config contiene i limiti del context manager
type Config struct {
	MaxContextSize int `yaml:"max_context_size" mapstructure:"max_context_size"`
	ChunkSize      int `yaml:"chunk_size" mapstructure:"chunk_size"`
	HistorySize    int `yaml:"history_size" mapstructure:"history_size"`
}

// TaskRecord è un'esecuzione registrata nella cronologia di un tipo di task
type TaskRecord struct {
	Subject    string        `json:"subject"`
	Score      *float64      `json:"score,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Manager applica la riduzione con i limiti configurati e mantiene
// la cronologia dei task
type Manager struct {
	config Config

	mu      sync.RWMutex
	history map[string][]TaskRecord
}

// New crea un Manager; i valori non positivi assumono i default
func New(cfg Config) *Manager {
	if cfg.MaxContextSize <= 0 {
		cfg.MaxContextSize = DefaultMaxContextSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &Manager{
		config:  cfg,
		history: make(map[string][]TaskRecord),
	}
}

// MaxContextSize restituisce il limite configurato
func (m *Manager) MaxContextSize() int {
	return m.config.MaxContextSize
}

// Process riduce il contesto al limite configurato
func (m *Manager) Process(context, prompt string) string {
	return Process(context, prompt, m.config.MaxContextSize, m.config.ChunkSize)
}

// ProcessWithLimit riduce il contesto a un limite esplicito
func (m *Manager) ProcessWithLimit(context, prompt string, limit int) string {
	if limit <= 0 || limit > m.config.MaxContextSize {
		limit = m.config.MaxContextSize
	}
	chunk := m.config.ChunkSize
	if chunk > limit {
		chunk = limit
	}
	return Process(context, prompt, limit, chunk)
}

// Reduce restituisce il limite da usare dopo un errore di contesto troppo grande
func Reduce(limit int) int {
	if limit <= 1 {
		return 1
	}
	return limit / 2
}

// Process restituisce il contesto invariato se entra in maxContextSize (in rune).
// Altrimenti lo divide in chunk di chunkSize, li ordina per sovrapposizione di
// parole con il prompt, mantiene il 30% migliore e tronca al limite.
// Un limite non positivo non lascia spazio al contesto.
func Process(context, prompt string, maxContextSize, chunkSize int) string {
	if maxContextSize <= 0 {
		return ""
	}
	runes := []rune(context)
	if len(runes) <= maxContextSize {
		return context
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunks := split(runes, chunkSize)
	promptWords := wordSet(prompt)

	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(chunks))
	for i, c := range chunks {
		ranked[i] = scored{text: c, score: relevance(promptWords, c)}
	}

	// stabile: a parità di punteggio vale l'ordine originale
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	keep := (len(ranked)*keepPercent + 99) / 100
	selected := make([]string, keep)
	for i := 0; i < keep; i++ {
		selected[i] = ranked[i].text
	}

	out := strings.Join(selected, chunkSeparator)
	if r := []rune(out); len(r) > maxContextSize {
		out = string(r[:maxContextSize])
	}

	log.Debug().
		Int("original_size", len(runes)).
		Int("chunks", len(chunks)).
		Int("kept", keep).
		Int("final_size", len([]rune(out))).
		Msg("Context reduced")

	return out
}

func split(runes []rune, size int) []string {
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// relevance è la frazione di parole del prompt presenti nel chunk
func relevance(promptWords map[string]struct{}, chunk string) float64 {
	if len(promptWords) == 0 {
		return 0
	}

	chunkWords := wordSet(chunk)
	matches := 0
	for w := range promptWords {
		if _, ok := chunkWords[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(promptWords))
}

// Record aggiunge un'esecuzione alla cronologia del tipo di task
func (m *Manager) Record(taskType string, rec TaskRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[taskType], rec)
	if len(h) > m.config.HistorySize {
		h = h[len(h)-m.config.HistorySize:]
	}
	m.history[taskType] = h
}

// History restituisce una copia della cronologia del tipo di task
func (m *Manager) History(taskType string) []TaskRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]TaskRecord(nil), m.history[taskType]...)
}
