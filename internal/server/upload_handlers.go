package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/shelfdesk/shelfdesk/internal/models"
)

const maxUploadSize = 5 << 20 // 5MB

var allowedUploadTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

var whitespace = regexp.MustCompile(`\s+`)

// storedFileName prefixes the client's base name with a ULID so names never collide
func storedFileName(original string) string {
	base := filepath.Base(filepath.Clean("/" + original))
	if base == "/" || base == "." {
		base = "upload"
	}
	return ulid.Make().String() + "_" + whitespace.ReplaceAllString(base, "_")
}

func (s *Server) describeUpload(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":      "Upload endpoint",
		"method":       "POST",
		"maxSize":      "5MB",
		"allowedTypes": allowedUploadTypes,
	})
}

func (s *Server) getUpload(c *gin.Context) {
	var upload models.Upload
	if err := models.FindByID(s.db, c.Param("id"), &upload); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
			return
		}
		s.logger.Error().Err(err).Str("upload_id", c.Param("id")).Msg("Failed to load upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            upload.ID,
		"url":           upload.URL(),
		"filename":      upload.Filename,
		"original_name": upload.OriginalName,
		"size":          upload.Size,
		"type":          upload.ContentType,
		"uploaded_by":   upload.UploadedBy,
		"created_at":    upload.CreatedAt,
	})
}

func (s *Server) upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to parse upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed", "details": err.Error()})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !slices.Contains(allowedUploadTypes, contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Only JPEG, PNG, and WebP images are allowed."})
		return
	}

	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 5MB."})
		return
	}

	upload := models.Upload{
		Filename:     storedFileName(header.Filename),
		OriginalName: header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
	}
	if session, ok := GetSessionData(c); ok {
		upload.UploadedBy = session.UserID
	}

	dst := filepath.Join(s.config.Uploads.Dir, upload.Filename)
	if err := c.SaveUploadedFile(header, dst); err != nil {
		s.logger.Error().Err(err).Str("path", dst).Msg("File write error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	if err := s.db.Create(&upload).Error; err != nil {
		s.logger.Error().Err(err).Str("filename", upload.Filename).Msg("Failed to record upload")
		if rmErr := os.Remove(dst); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("path", dst).Msg("Failed to remove orphaned upload")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	s.logger.Info().
		Str("upload_id", upload.ID).
		Str("filename", upload.Filename).
		Int64("size", upload.Size).
		Str("uploaded_by", upload.UploadedBy).
		Msg("File uploaded")

	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded successfully",
		"url":      upload.URL(),
		"filename": upload.Filename,
		"size":     upload.Size,
		"type":     upload.ContentType,
	})
}
