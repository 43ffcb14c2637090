// Package models contiene i modelli persistiti con GORM.
package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExecutionEvent è una entry del log delle esecuzioni salvata su database
type ExecutionEvent struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	ExecutionID string `json:"execution_id" gorm:"not null;index"`
	Kind        string `json:"kind" gorm:"not null;index"`
	SubjectID   string `json:"subject_id" gorm:"not null;index"`
	Status      string `json:"status" gorm:"not null"`

	Data datatypes.JSON `json:"data"`

	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook
func (e *ExecutionEvent) BeforeCreate(*gorm.DB) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if len(e.Data) == 0 {
		e.Data = datatypes.JSON("{}")
	}
	return nil
}

// TableName specifica il nome della tabella
func (ExecutionEvent) TableName() string {
	return "execution_events"
}

// SetData serializza i dati dell'evento
func (e *ExecutionEvent) SetData(data map[string]interface{}) error {
	if len(data) == 0 {
		e.Data = datatypes.JSON("{}")
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	e.Data = raw
	return nil
}

// DataMap deserializza i dati dell'evento
func (e *ExecutionEvent) DataMap() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if len(e.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
