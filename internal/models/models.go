package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Upload is an image accepted by the gateway and stored under the upload directory
type Upload struct {
	BaseModel
	Filename     string `json:"filename" gorm:"not null;uniqueIndex"` // <ulid>_<original name>
	OriginalName string `json:"original_name" gorm:"not null"`
	ContentType  string `json:"content_type" gorm:"not null"`
	Size         int64  `json:"size" gorm:"not null"`
	UploadedBy   string `json:"uploaded_by"` // user_id claim of the uploader when tokens are verified
}

// URL is the public path the upload is served under
func (u *Upload) URL() string {
	return "/uploads/" + u.Filename
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Upload{})
}

// FindByID loads a single record by primary key
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
