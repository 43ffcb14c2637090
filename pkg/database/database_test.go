package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/biodoia/goleapcode/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&Config{Type: TypeSQLite, Connection: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(&Config{Type: "mysql"})
	assert.Error(t, err)
}

func TestExecutionEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Ping(ctx))

	statuses := []string{"started", "step_completed", "step_failed", "completed"}
	for _, s := range statuses {
		e := &models.ExecutionEvent{ExecutionID: "exec_1_1", Kind: "workflow", SubjectID: "code-review", Status: s}
		require.NoError(t, e.SetData(map[string]interface{}{"status": s}))
		require.NoError(t, db.RecordEvent(ctx, e))
	}
	require.NoError(t, db.RecordEvent(ctx, &models.ExecutionEvent{ExecutionID: "exec_1_2", Kind: "agent", SubjectID: "syntax-analyzer", Status: "started"}))

	events, err := db.ExecutionEvents(ctx, "exec_1_1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, statuses[i], e.Status)
		data, err := e.DataMap()
		require.NoError(t, err)
		assert.Equal(t, statuses[i], data["status"])
	}

	recent, err := db.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "exec_1_2", recent[0].ExecutionID)
	assert.Equal(t, "completed", recent[1].Status)

	bySubject, err := db.SubjectEvents(ctx, "syntax-analyzer", 10)
	require.NoError(t, err)
	assert.Len(t, bySubject, 1)

	none, err := db.ExecutionEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPurgeEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := &models.ExecutionEvent{ExecutionID: "old", Kind: "agent", SubjectID: "a", Status: "completed", Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := &models.ExecutionEvent{ExecutionID: "fresh", Kind: "agent", SubjectID: "a", Status: "completed"}
	require.NoError(t, db.RecordEvent(ctx, old))
	require.NoError(t, db.RecordEvent(ctx, fresh))

	n, err := db.PurgeEvents(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := db.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].ExecutionID)
}

func TestModelSnapshots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, db.SaveModelSnapshots(ctx, []models.ModelSnapshot{
		{ModelID: "openai-gpt4", Status: "active", SuccessCount: 1, Timestamp: now.Add(-time.Hour)},
		{ModelID: "claude-3-opus", Status: "error", ErrorCount: 2, Timestamp: now.Add(-time.Hour)},
	}))
	require.NoError(t, db.SaveModelSnapshots(ctx, []models.ModelSnapshot{
		{ModelID: "openai-gpt4", Status: "active", SuccessCount: 5, Timestamp: now},
	}))
	require.NoError(t, db.SaveModelSnapshots(ctx, nil))

	latest, err := db.LatestModelSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "openai-gpt4", latest[0].ModelID)
	assert.Equal(t, int64(5), latest[0].SuccessCount)
	assert.Equal(t, "claude-3-opus", latest[1].ModelID)
}
