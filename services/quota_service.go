package services

import (
	"context"
	"fmt"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"
	"mubeapp_server/utils"
)

// QuotaService enforces the daily swipe allowance. The count is meaningful
// only for the current UTC calendar day: a stored date before today means
// the effective count is zero, and the write that consumes a unit also
// corrects the stored date (lazy reset, no separate reset write).
type QuotaService struct {
	Store store.Store
	Now   func() time.Time
}

// QuotaStatus is the read-only quota view returned to clients.
type QuotaStatus struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resetsAt"`
}

func (s *QuotaService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// MidnightUTC truncates t to the UTC day boundary.
func MidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// effectiveCount reads the stored counter, zeroing it when the stored date
// is before today.
func effectiveCount(doc store.Document, today time.Time) int {
	count := utils.ExtractInt(doc, "daily_swipes_count")
	if count < 0 {
		count = 0
	}
	last := utils.ExtractTime(doc, "last_swipe_date")
	if last.IsZero() || last.Before(today) {
		return 0
	}
	return count
}

// ConsumeInTxn consumes one quota unit inside the caller's transaction so a
// concurrent consumer of the same user's last slot loses the version race
// and retries into the exceeded branch.
func (s *QuotaService) ConsumeInTxn(tx store.Txn, userID string) (remaining int, err error) {
	doc, err := tx.Get(models.UsersCollection, userID)
	if err == store.ErrNotFound {
		return 0, NewNotFound("user not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read user %s: %w", userID, err)
	}

	now := s.now()
	today := MidnightUTC(now)
	count := effectiveCount(doc, today)

	if count >= models.DailySwipeLimit {
		return 0, NewQuotaExceeded(fmt.Sprintf("daily limit of %d swipes reached, try again tomorrow", models.DailySwipeLimit))
	}

	tx.Update(models.UsersCollection, userID, store.Document{
		"daily_swipes_count": count + 1,
		"last_swipe_date":    today,
		"updated_at":         now,
	})
	return models.DailySwipeLimit - count - 1, nil
}

// Consume runs ConsumeInTxn in its own transaction.
func (s *QuotaService) Consume(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := s.Store.RunTransaction(ctx, func(tx store.Txn) error {
		r, err := s.ConsumeInTxn(tx, userID)
		if err != nil {
			return err
		}
		remaining = r
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Snapshot computes the remaining quota from a user document without
// consuming anything.
func (s *QuotaService) Snapshot(doc store.Document) int {
	remaining := models.DailySwipeLimit - effectiveCount(doc, MidnightUTC(s.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Remaining returns the read-only quota status for a user.
func (s *QuotaService) Remaining(ctx context.Context, userID string) (*QuotaStatus, error) {
	doc, err := s.Store.Get(ctx, models.UsersCollection, userID)
	if err == store.ErrNotFound {
		return nil, NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", userID, err)
	}

	return &QuotaStatus{
		Remaining: s.Snapshot(doc),
		Limit:     models.DailySwipeLimit,
		ResetsAt:  MidnightUTC(s.now()).Add(24 * time.Hour),
	}, nil
}
