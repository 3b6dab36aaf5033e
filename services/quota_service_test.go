package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"
	"mubeapp_server/utils"
)

func TestMidnightUTC(t *testing.T) {
	in := time.Date(2026, 1, 15, 23, 59, 59, 123456789, time.FixedZone("BRT", -3*3600))
	got := MidnightUTC(in)
	// 23:59 BRT is already 02:59 UTC the next day.
	want := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestQuotaConsume_Boundary(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit - 1,
		"last_swipe_date":    MidnightUTC(env.now),
	})

	remaining, err := env.quota.Consume(ctx, "alice")
	if err != nil {
		t.Fatalf("slot %d must be consumable: %v", models.DailySwipeLimit, err)
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}

	if _, err := env.quota.Consume(ctx, "alice"); CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded past the limit, got %v", err)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != models.DailySwipeLimit {
		t.Errorf("rejected consume must not change the counter, got %v", doc["daily_swipes_count"])
	}
}

func TestQuotaConsume_LazyReset(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit,
		"last_swipe_date":    MidnightUTC(env.now).Add(-24 * time.Hour),
	})

	remaining, err := env.quota.Consume(ctx, "alice")
	if err != nil {
		t.Fatalf("yesterday's exhausted counter must not block today: %v", err)
	}
	if remaining != models.DailySwipeLimit-1 {
		t.Errorf("expected remaining %d, got %d", models.DailySwipeLimit-1, remaining)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != 1 {
		t.Errorf("expected counter rewritten to 1, got %v", doc["daily_swipes_count"])
	}
	if !utils.ExtractTime(doc, "last_swipe_date").Equal(MidnightUTC(env.now)) {
		t.Errorf("expected date rewritten to today, got %v", doc["last_swipe_date"])
	}
}

func TestQuotaConsume_ConcurrentLastSlot(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit - 1,
		"last_swipe_date":    MidnightUTC(env.now),
	})

	// Two consumers race for the single remaining slot; the version check
	// inside the transaction lets exactly one through.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.quota.Consume(ctx, "alice")
		}(i)
	}
	wg.Wait()

	var granted, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			granted++
		case CodeOf(err) == CodeQuotaExceeded:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if granted != 1 || rejected != 1 {
		t.Errorf("expected 1 granted / 1 rejected, got %d / %d", granted, rejected)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != models.DailySwipeLimit {
		t.Errorf("expected counter at the limit, got %v", doc["daily_swipes_count"])
	}
}

func TestQuotaConsume_UnknownUser(t *testing.T) {
	env := newTestEnv()
	if _, err := env.quota.Consume(context.Background(), "ghost"); CodeOf(err) != CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestQuotaRemaining_NeverNegative(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	// A counter past the limit (e.g. written by an older build) still reads
	// as zero remaining.
	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit + 5,
		"last_swipe_date":    MidnightUTC(env.now),
	})

	status, err := env.quota.Remaining(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", status.Remaining)
	}
}
