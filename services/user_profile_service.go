package services

import (
	"context"
	"fmt"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"
)

// UserProfileService manages the user documents the engine depends on:
// display data for previews plus the embedded quota and stats fields.
type UserProfileService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *UserProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetProfile returns a user profile by id.
func (s *UserProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	doc, err := s.Store.Get(ctx, models.UsersCollection, userID)
	if err == store.ErrNotFound {
		return nil, NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	return models.UserProfileFromDocument(userID, doc), nil
}

// UpsertProfile creates or merges the caller's display fields. Counter and
// quota fields are owned by the quota tracker and stats aggregator and are
// never written here.
func (s *UserProfileService) UpsertProfile(ctx context.Context, userID string, profile *models.UserProfile) error {
	if userID == "" {
		return NewUnauthenticated("caller identity required")
	}
	now := s.now()

	fields := store.Document{
		"user_id":    userID,
		"updated_at": now,
	}
	if profile.Name != "" {
		fields["nome"] = profile.Name
	}
	if profile.ArtisticName != "" {
		fields["nome_artistico"] = profile.ArtisticName
	}
	if profile.Photo != "" {
		fields["foto"] = profile.Photo
	}
	if profile.Bio != "" {
		fields["bio"] = profile.Bio
	}
	if len(profile.Instruments) > 0 {
		fields["instruments"] = profile.Instruments
	}

	existing, err := s.Store.Get(ctx, models.UsersCollection, userID)
	if err == store.ErrNotFound {
		fields["created_at"] = now
	} else if err != nil {
		return fmt.Errorf("failed to read user %s: %w", userID, err)
	} else if _, ok := existing["created_at"]; !ok {
		fields["created_at"] = now
	}

	if err := s.Store.Set(ctx, models.UsersCollection, userID, fields, true); err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", userID, err)
	}
	return nil
}
