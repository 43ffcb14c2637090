package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ModelSnapshot sono i contatori di un modello del registry in un istante
type ModelSnapshot struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ModelID  string    `json:"model_id" gorm:"not null;index"`
	Provider string    `json:"provider"`
	Status   string    `json:"status"`

	SuccessCount int64     `json:"success_count"`
	ErrorCount   int64     `json:"error_count"`
	SuccessRate  float64   `json:"success_rate"` // 0.0-1.0
	LastError    string    `json:"last_error"`
	LastUsed     time.Time `json:"last_used"`

	Capabilities datatypes.JSON `json:"capabilities"`

	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook
func (s *ModelSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return nil
}

// TableName specifica il nome della tabella
func (ModelSnapshot) TableName() string {
	return "model_snapshots"
}
