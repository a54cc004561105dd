package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// StoredToken is one persisted credential row
type StoredToken struct {
	Scope     string    `gorm:"primaryKey;type:varchar(255)"`
	Name      string    `gorm:"primaryKey;type:varchar(32)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable across renames of the struct
func (StoredToken) TableName() string { return "tokens" }

// SQLiteStore persists tokens in a local sqlite database
type SQLiteStore struct {
	db    *gorm.DB
	scope string
}

// NewSQLiteStore opens (or creates) shelf.sqlite in dir
func NewSQLiteStore(dir, scope string) (*SQLiteStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user config directory: %w", err)
		}
		dir = filepath.Join(base, "shelf")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "shelf.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	return NewSQLiteStoreWithDB(db, scope)
}

// NewSQLiteStoreWithDB uses an existing connection and migrates the tokens table
func NewSQLiteStoreWithDB(db *gorm.DB, scope string) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&StoredToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate token table: %w", err)
	}
	return &SQLiteStore{db: db, scope: scope}, nil
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var row StoredToken
	err := s.db.Where("scope = ? AND name = ?", s.scope, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return row.Value, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	row := StoredToken{Scope: s.scope, Name: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(key string) error {
	err := s.db.Where("scope = ? AND name = ?", s.scope, key).Delete(&StoredToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
