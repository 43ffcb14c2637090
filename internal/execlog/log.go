// Package execlog registra le transizioni di stato delle esecuzioni di
// agenti e workflow. Ogni esecuzione è append-only e diventa immutabile
// quando raggiunge uno stato terminale.
package execlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind distingue le esecuzioni di agenti da quelle di workflow
type Kind string

const (
	KindAgent    Kind = "agent"
	KindWorkflow Kind = "workflow"
)

// Status è lo stato riportato da una entry
type Status string

const (
	StatusStarted       Status = "started"
	StatusStepCompleted Status = "step_completed"
	StatusStepFailed    Status = "step_failed"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// State è lo stato complessivo di un'esecuzione
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
)

const (
	DefaultMaxEntries    = 1000
	DefaultMaxExecutions = 1000
)

var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrExecutionClosed   = errors.New("execution already terminated")
)

// Entry è una transizione di stato
type Entry struct {
	ExecutionID string                 `json:"executionId"`
	Kind        Kind                   `json:"kind"`
	SubjectID   string                 `json:"subjectId"`
	Status      Status                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Execution è lo snapshot di un'esecuzione
type Execution struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subjectId"`
	State     State     `json:"state"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitempty"`
	Error     string    `json:"error,omitempty"`
	Entries   []Entry   `json:"entries"`
}

// Duration restituisce la durata dell'esecuzione (fino ad ora se ancora in corso)
func (e Execution) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// Sink riceve una copia di ogni entry, ad esempio per la persistenza
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

type execution struct {
	seq uint64

	mu   sync.Mutex
	data Execution
}

// Log è il registro delle esecuzioni del processo
type Log struct {
	mu         sync.RWMutex
	executions map[string]*execution
	// id delle esecuzioni terminate, dalla più vecchia
	finished []string

	seq           atomic.Uint64
	maxEntries    int
	maxExecutions int
	sink          Sink
	now           func() time.Time
}

// Option configura il Log
type Option func(*Log)

// WithSink inoltra ogni entry al sink
func WithSink(s Sink) Option {
	return func(l *Log) { l.sink = s }
}

// WithMaxEntries limita il numero di entry conservate per esecuzione
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

// WithMaxExecutions limita il numero di esecuzioni conservate. Superato il
// limite vengono scartate le esecuzioni terminate più vecchie; quelle in
// corso restano sempre.
func WithMaxExecutions(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxExecutions = n
		}
	}
}

// New crea un Log vuoto
func New(opts ...Option) *Log {
	l := &Log{
		executions: make(map[string]*execution),
		maxEntries:    DefaultMaxEntries,
		maxExecutions: DefaultMaxExecutions,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewID genera un id unico nel processo: exec_<unix-ms>_<sequenza>
func (l *Log) NewID() string {
	id, _ := l.newID()
	return id
}

func (l *Log) newID() (string, uint64) {
	seq := l.seq.Add(1)
	return fmt.Sprintf("exec_%d_%d", l.now().UnixMilli(), seq), seq
}

// Start apre una nuova esecuzione e registra l'entry started
func (l *Log) Start(kind Kind, subjectID string, data map[string]interface{}) string {
	id, seq := l.newID()
	now := l.now()

	entry := Entry{
		ExecutionID: id,
		Kind:        kind,
		SubjectID:   subjectID,
		Status:      StatusStarted,
		Timestamp:   now,
		Data:        data,
	}

	exec := &execution{seq: seq, data: Execution{
		ID:        id,
		Kind:      kind,
		SubjectID: subjectID,
		State:     StateRunning,
		StartTime: now,
		Entries:   []Entry{entry},
	}}

	l.mu.Lock()
	l.executions[id] = exec
	l.mu.Unlock()

	l.forward(entry)
	return id
}

// Append aggiunge una entry intermedia a un'esecuzione in corso
func (l *Log) Append(id string, status Status, data map[string]interface{}) error {
	return l.append(id, status, data, "")
}

// Complete chiude l'esecuzione con successo
func (l *Log) Complete(id string, data map[string]interface{}) error {
	return l.append(id, StatusCompleted, data, "")
}

// Fail chiude l'esecuzione con errore
func (l *Log) Fail(id string, cause error, data map[string]interface{}) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if data == nil {
		data = make(map[string]interface{}, 1)
	}
	data["error"] = msg
	return l.append(id, StatusError, data, msg)
}

func (l *Log) append(id string, status Status, data map[string]interface{}, errMsg string) error {
	l.mu.RLock()
	exec, ok := l.executions[id]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	exec.mu.Lock()
	if exec.data.State != StateRunning {
		exec.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExecutionClosed, id)
	}

	now := l.now()
	if now.Before(exec.data.StartTime) {
		now = exec.data.StartTime
	}

	entry := Entry{
		ExecutionID: id,
		Kind:        exec.data.Kind,
		SubjectID:   exec.data.SubjectID,
		Status:      status,
		Timestamp:   now,
		Data:        data,
	}

	exec.data.Entries = append(exec.data.Entries, entry)
	if len(exec.data.Entries) > l.maxEntries {
		exec.data.Entries = exec.data.Entries[len(exec.data.Entries)-l.maxEntries:]
	}

	terminal := true
	switch status {
	case StatusCompleted:
		exec.data.State = StateCompleted
		exec.data.EndTime = now
	case StatusError:
		exec.data.State = StateError
		exec.data.EndTime = now
		exec.data.Error = errMsg
	default:
		terminal = false
	}
	exec.mu.Unlock()

	if terminal {
		l.retire(id)
	}
	l.forward(entry)
	return nil
}

// retire accoda un'esecuzione terminata e scarta le più vecchie oltre il limite
func (l *Log) retire(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.finished = append(l.finished, id)
	evicted := 0
	for len(l.executions) > l.maxExecutions && len(l.finished) > 0 {
		delete(l.executions, l.finished[0])
		l.finished = l.finished[1:]
		evicted++
	}
	if evicted > 0 {
		log.Debug().
			Int("evicted", evicted).
			Int("retained", len(l.executions)).
			Msg("Old executions evicted")
	}
}

func (l *Log) forward(entry Entry) {
	if l.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.sink.Record(ctx, entry); err != nil {
		log.Warn().
			Err(err).
			Str("execution_id", entry.ExecutionID).
			Str("status", string(entry.Status)).
			Msg("Failed to persist execution entry")
	}
}

// Get restituisce una copia dell'esecuzione
func (l *Log) Get(id string) (Execution, error) {
	l.mu.RLock()
	exec, ok := l.executions[id]
	l.mu.RUnlock()
	if !ok {
		return Execution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return exec.snapshot(), nil
}

func (e *execution) snapshot() Execution {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.data
	s.Entries = append([]Entry(nil), e.data.Entries...)
	return s
}

// History restituisce le entry di un'esecuzione, vuoto se sconosciuta
func (l *Log) History(id string) []Entry {
	exec, err := l.Get(id)
	if err != nil {
		return []Entry{}
	}
	return exec.Entries
}

// Recent restituisce le ultime n esecuzioni, dalla più recente (n <= 0: tutte)
func (l *Log) Recent(n int) []Execution {
	l.mu.RLock()
	execs := make([]*execution, 0, len(l.executions))
	for _, exec := range l.executions {
		execs = append(execs, exec)
	}
	l.mu.RUnlock()

	sort.Slice(execs, func(i, j int) bool {
		return execs[i].seq > execs[j].seq
	})
	if n > 0 && len(execs) > n {
		execs = execs[:n]
	}

	list := make([]Execution, len(execs))
	for i, exec := range execs {
		list[i] = exec.snapshot()
	}
	return list
}
