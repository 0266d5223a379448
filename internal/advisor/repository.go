package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/primebets/advisor/internal/kv"
)

const (
	profilePrefix       = "profile:"
	platformsKey        = "platforms_data"
	platformsUpdatedKey = "platforms_last_update"
)

// ErrProfileNotFound is returned when the user never completed the quiz
var ErrProfileNotFound = errors.New("bettor profile not found")

// Repository persists profiles and platform snapshots
type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Profile returns the stored quiz result. A corrupt record reads as missing.
func (r *Repository) Profile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	found, err := kv.GetJSON(ctx, r.store, profilePrefix+userID, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if !found {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// SaveProfile replaces any previous profile wholesale
func (r *Repository) SaveProfile(ctx context.Context, userID string, p Profile) error {
	if err := kv.SetJSON(ctx, r.store, profilePrefix+userID, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// SavePlatforms stores the ranked snapshot and its refresh time
func (r *Repository) SavePlatforms(ctx context.Context, snapshots []PlatformSnapshot, at time.Time) error {
	if err := kv.SetJSON(ctx, r.store, platformsKey, snapshots); err != nil {
		return fmt.Errorf("failed to save platforms: %w", err)
	}
	if err := kv.SetJSON(ctx, r.store, platformsUpdatedKey, at); err != nil {
		return fmt.Errorf("failed to save platforms update time: %w", err)
	}
	return nil
}

// Platforms returns the last stored snapshot, empty when none was stored
func (r *Repository) Platforms(ctx context.Context) ([]PlatformSnapshot, time.Time, error) {
	var snapshots []PlatformSnapshot
	if _, err := kv.GetJSON(ctx, r.store, platformsKey, &snapshots); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load platforms: %w", err)
	}

	var at time.Time
	if _, err := kv.GetJSON(ctx, r.store, platformsUpdatedKey, &at); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load platforms update time: %w", err)
	}
	return snapshots, at, nil
}
