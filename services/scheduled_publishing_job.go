package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"publishing-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrScheduledPublishingAlreadyRunning = errors.New("scheduled publishing already running")

// ScheduledPublishingSummary reports one sweep.
type ScheduledPublishingSummary struct {
	Published   int64     `json:"publishedCount"`
	Unpublished int64     `json:"unpublishedCount"`
	ProcessedAt time.Time `json:"processedAt"`
}

// ScheduledPublishingJob promotes scheduled pages whose time has come and
// takes expired pages back to draft. It never touches workflow records.
type ScheduledPublishingJob struct {
	db       *gorm.DB
	lockName string
	log      *zap.Logger
}

// NewScheduledPublishingJob builds the sweep. lockName names the MySQL
// advisory lock held while it runs; empty disables locking.
func NewScheduledPublishingJob(db *gorm.DB, lockName string, log *zap.Logger) *ScheduledPublishingJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduledPublishingJob{db: db, lockName: lockName, log: log}
}

// Run performs one sweep as of now.
func (j *ScheduledPublishingJob) Run(ctx context.Context, now time.Time) (*ScheduledPublishingSummary, error) {
	if !j.locking() {
		return j.sweep(ctx, j.db, now)
	}

	// GET_LOCK is per connection, so the lock and the sweep share one.
	var summary *ScheduledPublishingSummary
	err := j.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var ok int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", j.lockName).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return ErrScheduledPublishingAlreadyRunning
		}
		defer func() {
			var released int
			if err := conn.WithContext(persistentContext(ctx)).Raw("SELECT RELEASE_LOCK(?)", j.lockName).Scan(&released).Error; err != nil {
				j.log.Warn("failed to release scheduled publishing lock", zap.Error(err))
			}
		}()

		var err error
		summary, err = j.sweep(ctx, conn, now)
		return err
	})
	return summary, err
}

func (j *ScheduledPublishingJob) sweep(ctx context.Context, db *gorm.DB, now time.Time) (*ScheduledPublishingSummary, error) {
	summary := &ScheduledPublishingSummary{ProcessedAt: now}

	published := db.WithContext(ctx).
		Model(&models.Page{}).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", models.PageStatusScheduled, now).
		Updates(map[string]interface{}{
			"status":       models.PageStatusPublished,
			"published_at": now,
			"updated_at":   now,
		})
	if published.Error != nil {
		return nil, fmt.Errorf("publish scheduled pages: %w", published.Error)
	}
	summary.Published = published.RowsAffected

	unpublished := db.WithContext(ctx).
		Model(&models.Page{}).
		Where("status = ? AND unpublish_at IS NOT NULL AND unpublish_at <= ?", models.PageStatusPublished, now).
		Updates(map[string]interface{}{
			"status":     models.PageStatusDraft,
			"updated_at": now,
		})
	if unpublished.Error != nil {
		return summary, fmt.Errorf("unpublish expired pages: %w", unpublished.Error)
	}
	summary.Unpublished = unpublished.RowsAffected

	if summary.Published > 0 || summary.Unpublished > 0 {
		j.log.Info("scheduled publishing sweep",
			zap.Int64("published", summary.Published),
			zap.Int64("unpublished", summary.Unpublished),
		)
	}
	return summary, nil
}

// Start runs the sweep every interval until ctx is done.
func (j *ScheduledPublishingJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := j.Run(ctx, t.UTC()); err != nil {
				if errors.Is(err, ErrScheduledPublishingAlreadyRunning) || errors.Is(err, context.Canceled) {
					continue
				}
				j.log.Error("scheduled publishing sweep failed", zap.Error(err))
			}
		}
	}
}

// locking reports whether sweeps are serialized with a MySQL advisory lock.
// Other dialects run unlocked.
func (j *ScheduledPublishingJob) locking() bool {
	return strings.TrimSpace(j.lockName) != "" && j.db.Dialector.Name() == "mysql"
}
