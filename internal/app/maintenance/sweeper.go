// Package maintenance runs the background reconciliation that keeps
// aggregate reaction notifications converged with the reactions table after
// missed destroy events or reactable deletions.
package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/models"
	"github.com/ovationhq/ovation/internal/reactions"
	"github.com/ovationhq/ovation/pkg/logger"
)

const (
	defaultSchedule  = "@hourly"
	defaultBatchSize = 500
)

// Sweeper periodically replays every reaction notification through the
// upsert engine. Rows whose sibling set is empty get deleted, stale
// payloads get refreshed, and rows whose notifiable vanished are removed
// outright.
type Sweeper struct {
	db       *gorm.DB
	consumer *reactions.Consumer
	cron     *cron.Cron
	log      *zap.Logger

	schedule string
	batch    int
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for sweep runs.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithBatchSize caps how many notification rows one sweep examines.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// NewSweeper constructs a Sweeper with hourly runs by default.
func NewSweeper(db *gorm.DB, consumer *reactions.Consumer, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		db:       db,
		consumer: consumer,
		schedule: defaultSchedule,
		batch:    defaultBatchSize,
		log:      logger.Named("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New()
	}
	return sweeper
}

// Start registers the sweep job and launches the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.SweepOnce(context.Background()); err != nil {
			s.log.Error("sweep run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce examines up to the configured batch of reaction notifications
// and converges each through the engine. Failures on individual rows are
// collected rather than aborting the whole run.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where("action = ?", models.NotificationActionReaction).
		Order("id").
		Limit(s.batch).
		Find(&rows).Error
	if err != nil {
		return err
	}

	var (
		errs    error
		deleted int
	)
	for _, row := range rows {
		reactableType := reactions.Type(row.NotifiableType)
		exists, err := reactions.ReactableExists(ctx, s.db, row.NotifiableID, reactableType)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		if !exists {
			if err := s.db.WithContext(ctx).Delete(&models.Notification{}, row.ID).Error; err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			deleted++
			continue
		}

		payload := map[string]any{
			"reactable_id":   row.NotifiableID,
			"reactable_type": row.NotifiableType,
			"status":         string(reactions.StatusDestroyed),
		}
		if err := s.consumer.Consume(ctx, payload); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	s.log.Info("sweep finished",
		zap.Int("examined", len(rows)),
		zap.Int("orphans_deleted", deleted))
	return errs
}
