package execlog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *recordingSink) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

func TestLog_Lifecycle(t *testing.T) {
	sink := &recordingSink{}
	l := New(WithSink(sink))

	id := l.Start(KindWorkflow, "code-review", map[string]interface{}{"steps": 5})
	assert.Regexp(t, regexp.MustCompile(`^exec_\d+_\d+$`), id)

	require.NoError(t, l.Append(id, StatusStepCompleted, map[string]interface{}{"step": "Syntax Analysis"}))
	require.NoError(t, l.Complete(id, map[string]interface{}{"successfulSteps": 1}))

	exec, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, exec.State)
	assert.Equal(t, "code-review", exec.SubjectID)
	assert.False(t, exec.EndTime.Before(exec.StartTime))

	statuses := make([]Status, len(exec.Entries))
	for i, e := range exec.Entries {
		statuses[i] = e.Status
	}
	assert.Equal(t, []Status{StatusStarted, StatusStepCompleted, StatusCompleted}, statuses)
	assert.Len(t, sink.entries, 3)

	// immutabile dopo lo stato terminale
	assert.ErrorIs(t, l.Append(id, StatusStepFailed, nil), ErrExecutionClosed)
	assert.ErrorIs(t, l.Fail(id, errors.New("late"), nil), ErrExecutionClosed)
	assert.Len(t, l.History(id), 3)
}

func TestLog_Fail(t *testing.T) {
	l := New()
	id := l.Start(KindAgent, "syntax-analyzer", nil)

	require.NoError(t, l.Fail(id, errors.New("provider down"), map[string]interface{}{"executionTime": 12}))

	exec, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateError, exec.State)
	assert.Equal(t, "provider down", exec.Error)
	last := exec.Entries[len(exec.Entries)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, "provider down", last.Data["error"])
}

func TestLog_UnknownExecution(t *testing.T) {
	l := New()

	assert.ErrorIs(t, l.Append("nope", StatusStepCompleted, nil), ErrExecutionNotFound)
	_, err := l.Get("nope")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	assert.Empty(t, l.History("nope"))
	assert.NotNil(t, l.History("nope"))
}

func TestLog_EntryCap(t *testing.T) {
	l := New(WithMaxEntries(3))
	id := l.Start(KindWorkflow, "w", nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(id, StatusStepCompleted, map[string]interface{}{"i": i}))
	}

	entries := l.History(id)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Data["i"])
	assert.Equal(t, 4, entries[2].Data["i"])
}

func TestLog_EvictsOldestTerminatedExecutions(t *testing.T) {
	l := New(WithMaxExecutions(3))

	running := l.Start(KindWorkflow, "long", nil)
	var done []string
	for i := 0; i < 4; i++ {
		id := l.Start(KindAgent, fmt.Sprintf("a%d", i), nil)
		require.NoError(t, l.Complete(id, nil))
		done = append(done, id)
	}

	assert.Len(t, l.Recent(0), 3)

	// l'esecuzione in corso resta anche se è la più vecchia
	exec, err := l.Get(running)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, exec.State)

	for _, id := range done[:2] {
		_, err := l.Get(id)
		assert.ErrorIs(t, err, ErrExecutionNotFound)
	}
	for _, id := range done[2:] {
		_, err := l.Get(id)
		assert.NoError(t, err)
	}

	// terminata per ultima, viene scartata dopo d2 e d3
	require.NoError(t, l.Fail(running, errors.New("boom"), nil))
	extra := l.Start(KindAgent, "late", nil)
	require.NoError(t, l.Complete(extra, nil))

	_, err = l.Get(done[2])
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	exec, err = l.Get(running)
	require.NoError(t, err)
	assert.Equal(t, StateError, exec.State)
	assert.Len(t, l.Recent(0), 3)
}

func TestLog_UniqueIDsUnderConcurrency(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return fixed }

	const n = 100
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = l.Start(KindAgent, fmt.Sprintf("a%d", i), nil)
			_ = l.Append(ids[i], StatusStepCompleted, nil)
			_ = l.Complete(ids[i], nil)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Len(t, l.History(id), 3)
	}
}

func TestLog_Recent(t *testing.T) {
	l := New()
	first := l.Start(KindAgent, "a", nil)
	second := l.Start(KindAgent, "b", nil)
	third := l.Start(KindWorkflow, "c", nil)

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, third, recent[0].ID)
	assert.Equal(t, second, recent[1].ID)

	all := l.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[2].ID)
	assert.Equal(t, StateRunning, all[2].State)
}

func TestLog_SinkErrorsAreNotFatal(t *testing.T) {
	l := New(WithSink(&recordingSink{err: errors.New("db down")}))
	id := l.Start(KindAgent, "a", nil)
	assert.NoError(t, l.Complete(id, nil))
}
