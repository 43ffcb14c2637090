// Package database persiste la cronologia delle esecuzioni e gli snapshot
// dei modelli su PostgreSQL o SQLite.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biodoia/goleapcode/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Config contiene la configurazione del database
type Config struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Type       string `yaml:"type" mapstructure:"type"`             // "postgres" or "sqlite"
	Connection string `yaml:"connection" mapstructure:"connection"` // Connection string
	MaxConns   int    `yaml:"max_conns" mapstructure:"max_conns"`
	LogLevel   string `yaml:"log_level" mapstructure:"log_level"`

	// Retention elimina gli eventi più vecchi all'avvio (0 = mai)
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
}

// DB wrappa la connessione GORM
type DB struct {
	*gorm.DB
}

// New crea una nuova connessione al database
func New(cfg *Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case TypePostgres:
		dialector = postgres.Open(cfg.Connection)
	case TypeSQLite:
		if dir := filepath.Dir(cfg.Connection); !strings.HasPrefix(cfg.Connection, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// AutoMigrate esegue le migrazioni del database
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.ExecutionEvent{},
		&models.ModelSnapshot{},
	)
}

// Close chiude la connessione al database
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifica la connessione
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// RecordEvent salva un evento di esecuzione
func (db *DB) RecordEvent(ctx context.Context, event *models.ExecutionEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

// ExecutionEvents restituisce gli eventi di un'esecuzione in ordine di inserimento
func (db *DB) ExecutionEvents(ctx context.Context, executionID string) ([]models.ExecutionEvent, error) {
	var events []models.ExecutionEvent
	err := db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

// SubjectEvents restituisce gli ultimi eventi di un agente o workflow
func (db *DB) SubjectEvents(ctx context.Context, subjectID string, limit int) ([]models.ExecutionEvent, error) {
	var events []models.ExecutionEvent
	err := db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// RecentEvents restituisce gli eventi più recenti
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]models.ExecutionEvent, error) {
	var events []models.ExecutionEvent
	err := db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// PurgeEvents elimina gli eventi precedenti a before
func (db *DB) PurgeEvents(ctx context.Context, before time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.ExecutionEvent{})
	return res.RowsAffected, res.Error
}

// SaveModelSnapshots salva i contatori correnti dei modelli
func (db *DB) SaveModelSnapshots(ctx context.Context, snapshots []models.ModelSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(&snapshots, 100).Error
}

// LatestModelSnapshots restituisce l'ultimo snapshot di ogni modello
func (db *DB) LatestModelSnapshots(ctx context.Context) ([]models.ModelSnapshot, error) {
	var all []models.ModelSnapshot
	err := db.WithContext(ctx).
		Where("timestamp > ?", time.Now().Add(-24*time.Hour)).
		Order("timestamp DESC").
		Limit(1000).
		Find(&all).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	latest := make([]models.ModelSnapshot, 0)
	for _, s := range all {
		if seen[s.ModelID] {
			continue
		}
		seen[s.ModelID] = true
		latest = append(latest, s)
	}
	return latest, nil
}
