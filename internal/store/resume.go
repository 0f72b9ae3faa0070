package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/amaumene/catalogarr/internal/models"
)

// SetResume stores the playback position for (key, profileID).
// Position is clamped to [0, duration] when the duration is known.
func (s *Store) SetResume(ctx context.Context, key, profileID string, positionMs, durationMs int64, ref *models.SourceRef) (*models.ResumeMark, error) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("%w: resume needs a key and a profile", ErrInvalidRecord)
	}
	if durationMs < 0 {
		durationMs = 0
	}
	if positionMs < 0 {
		positionMs = 0
	}
	if durationMs > 0 && positionMs > durationMs {
		positionMs = durationMs
	}

	percent := 0.0
	if durationMs > 0 {
		percent = float64(positionMs) * 100 / float64(durationMs)
	}

	unlock := s.locks.lock(resumeLockKey(key, profileID))
	defer unlock()

	now := s.now()
	var saved models.ResumeMark
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mark models.ResumeMark
		err := tx.Where("canonical_key = ? AND profile_id = ?", key, profileID).Take(&mark).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load resume mark: %w", err)
		}

		mark.CanonicalKey = key
		mark.ProfileID = profileID
		mark.PositionMs = positionMs
		mark.DurationMs = durationMs
		mark.PositionPercent = percent
		mark.IsCompleted = durationMs > 0 && percent >= s.completionThreshold
		mark.ClearedAt = nil
		mark.UpdatedAt = now
		if ref != nil && ref.SourceType.Valid() {
			st := ref.SourceType
			mark.LastSourceType = &st
			if id := strings.TrimSpace(ref.SourceID); id != "" {
				mark.LastSourceID = &id
			}
		}

		if exists {
			err = tx.Save(&mark).Error
		} else {
			err = tx.Create(&mark).Error
		}
		if err != nil {
			return fmt.Errorf("failed to save resume mark: %w", err)
		}
		saved = mark
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(models.TableResumeMarks)
	return &saved, nil
}

// GetResume returns the live resume mark for (key, profileID), or nil when there is none
func (s *Store) GetResume(ctx context.Context, key, profileID string) (*models.ResumeMark, error) {
	var mark models.ResumeMark
	err := s.db.WithContext(ctx).
		Where("canonical_key = ? AND profile_id = ? AND cleared_at IS NULL", key, profileID).
		Take(&mark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resume mark: %w", err)
	}
	return &mark, nil
}

// ClearResume logically resets the resume mark for (key, profileID). The row is kept
// with a zero position so it drops out of continue watching.
func (s *Store) ClearResume(ctx context.Context, key, profileID string) error {
	unlock := s.locks.lock(resumeLockKey(key, profileID))
	defer unlock()

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.ResumeMark{}).
		Where("canonical_key = ? AND profile_id = ? AND cleared_at IS NULL", key, profileID).
		Updates(map[string]interface{}{
			"position_ms":      0,
			"position_percent": 0,
			"is_completed":     false,
			"cleared_at":       now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to clear resume mark: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.notifier.Publish(models.TableResumeMarks)
	}
	return nil
}

func resumeLockKey(key, profileID string) string {
	return "resume\x00" + key + "\x00" + profileID
}
