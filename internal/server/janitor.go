package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/shelfdesk/shelfdesk/internal/models"
)

// PruneMissingUploads deletes index rows whose file is gone from dir and returns how many were removed
func PruneMissingUploads(db *gorm.DB, dir string, logger zerolog.Logger) (int, error) {
	var uploads []models.Upload
	if err := db.Find(&uploads).Error; err != nil {
		return 0, fmt.Errorf("failed to list uploads: %w", err)
	}

	var missing []string
	for _, upload := range uploads {
		_, err := os.Stat(filepath.Join(dir, upload.Filename))
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, upload.ID)
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("filename", upload.Filename).Msg("Failed to stat upload")
		}
	}

	if len(missing) == 0 {
		return 0, nil
	}

	if err := db.Where("id IN ?", missing).Delete(&models.Upload{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete upload records: %w", err)
	}

	return len(missing), nil
}

// startJanitor schedules PruneMissingUploads. An empty schedule disables it.
func (s *Server) startJanitor() error {
	schedule := s.config.Uploads.CleanupSchedule
	if schedule == "" {
		s.logger.Info().Msg("Upload janitor disabled")
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		removed, err := PruneMissingUploads(s.db, s.config.Uploads.Dir, s.logger)
		if err != nil {
			s.logger.Error().Err(err).Msg("Upload janitor failed")
			return
		}
		if removed > 0 {
			s.logger.Info().Int("removed", removed).Msg("Pruned upload records without files")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid upload cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	s.janitor = c
	s.logger.Info().Str("schedule", schedule).Msg("Upload janitor started")
	return nil
}
