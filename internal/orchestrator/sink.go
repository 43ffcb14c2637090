package orchestrator

import (
	"context"

	"github.com/biodoia/goleapcode/internal/execlog"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/biodoia/goleapcode/pkg/models"
)

// dbSink salva le entry del log delle esecuzioni su database
type dbSink struct {
	db *database.DB
}

func (s dbSink) Record(ctx context.Context, entry execlog.Entry) error {
	event := &models.ExecutionEvent{
		ExecutionID: entry.ExecutionID,
		Kind:        string(entry.Kind),
		SubjectID:   entry.SubjectID,
		Status:      string(entry.Status),
		Timestamp:   entry.Timestamp,
	}
	if err := event.SetData(entry.Data); err != nil {
		return err
	}
	return s.db.RecordEvent(ctx, event)
}

func entryFromEvent(e models.ExecutionEvent) execlog.Entry {
	data, err := e.DataMap()
	if err != nil {
		data = map[string]interface{}{"raw": string(e.Data)}
	}
	return execlog.Entry{
		ExecutionID: e.ExecutionID,
		Kind:        execlog.Kind(e.Kind),
		SubjectID:   e.SubjectID,
		Status:      execlog.Status(e.Status),
		Timestamp:   e.Timestamp,
		Data:        data,
	}
}
