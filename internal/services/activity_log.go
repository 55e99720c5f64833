package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/lbscout/internal/kvstore"
	"github.com/wnt/lbscout/internal/models"
)

const (
	// ActivityLogKey is the store key holding the activity log
	ActivityLogKey = "saros_dlmm_activity_log"
	// MaxActivities is how many entries the log keeps
	MaxActivities = 7
)

// ActivityLog records recent user actions, newest first
type ActivityLog struct {
	store  kvstore.Store
	mutex  sync.Mutex
	logger zerolog.Logger
	now    func() time.Time
}

// NewActivityLog creates an activity log over store
func NewActivityLog(store kvstore.Store, logger zerolog.Logger) *ActivityLog {
	return &ActivityLog{
		store:  store,
		logger: logger.With().Str("component", "activity_log").Logger(),
		now:    time.Now,
	}
}

// Add prepends an activity and trims the log to MaxActivities entries
func (a *ActivityLog) Add(ctx context.Context, activityType models.ActivityType, details, tx string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	existing, err := a.List(ctx)
	if err != nil {
		return err
	}

	entry := models.Activity{
		Type:      activityType,
		Details:   details,
		Tx:        tx,
		Timestamp: a.now().UnixMilli(),
	}
	updated := append([]models.Activity{entry}, existing...)
	if len(updated) > MaxActivities {
		updated = updated[:MaxActivities]
	}

	if err := kvstore.SetJSON(ctx, a.store, ActivityLogKey, updated); err != nil {
		return fmt.Errorf("failed to update activity log: %w", err)
	}
	return nil
}

// List returns the logged activities, newest first. An unreadable log reads as empty.
func (a *ActivityLog) List(ctx context.Context) ([]models.Activity, error) {
	var activities []models.Activity
	found, err := kvstore.GetJSON(ctx, a.store, ActivityLogKey, &activities)
	if found && err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring malformed activity log")
		return []models.Activity{}, nil
	}
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, nil
}
