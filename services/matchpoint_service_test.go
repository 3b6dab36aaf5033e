package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"mubeapp_server/events"
	"mubeapp_server/models"
	"mubeapp_server/store"
	"mubeapp_server/utils"
)

// testEnv wires the full service stack onto a MemoryStore with a synchronous
// bus and a controllable clock.
type testEnv struct {
	store *store.MemoryStore
	bus   *events.InMemoryBus
	now   time.Time

	quota      *QuotaService
	ledger     *InteractionService
	matches    *MatchService
	matchpoint *MatchpointService
	stats      *StatsService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: store.NewMemoryStore(),
		bus:   events.NewSyncBus(),
		now:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.stats = &StatsService{Store: env.store}
	env.stats.Register(env.bus)

	env.quota = &QuotaService{Store: env.store, Now: clock}
	env.ledger = &InteractionService{Store: env.store, Bus: env.bus, Now: clock}
	env.matches = &MatchService{Store: env.store, Now: clock}
	env.matchpoint = &MatchpointService{
		Store:   env.store,
		Quota:   env.quota,
		Ledger:  env.ledger,
		Matches: env.matches,
		Now:     clock,
	}
	return env
}

func (e *testEnv) seedUser(t *testing.T, id, name string) {
	t.Helper()
	profile := &models.UserProfile{UserID: id, Name: name, CreatedAt: e.now, UpdatedAt: e.now}
	if err := e.store.Set(context.Background(), models.UsersCollection, id, profile.Document(), false); err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
}

func (e *testEnv) userDoc(t *testing.T, id string) store.Document {
	t.Helper()
	doc, err := e.store.Get(context.Background(), models.UsersCollection, id)
	if err != nil {
		t.Fatalf("failed to read user %s: %v", id, err)
	}
	return doc
}

func (e *testEnv) countDocs(t *testing.T, collection string) int {
	t.Helper()
	results, err := e.store.Query(context.Background(), collection, nil, 0)
	if err != nil {
		t.Fatalf("failed to query %s: %v", collection, err)
	}
	return len(results)
}

func TestSubmitAction_LikeRecorded(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")

	result, err := env.matchpoint.SubmitAction(context.Background(), "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsMatch {
		t.Error("one-sided like must not match")
	}
	if result.Message != "Like recorded" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if result.RemainingQuota != models.DailySwipeLimit-1 {
		t.Errorf("expected remaining %d, got %d", models.DailySwipeLimit-1, result.RemainingQuota)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != 1 {
		t.Errorf("expected quota count 1, got %v", doc["daily_swipes_count"])
	}
	if utils.ExtractInt(doc, "total_likes_sent") != 1 {
		t.Errorf("expected stats counter 1, got %v", doc["total_likes_sent"])
	}

	interaction, err := env.ledger.Get(context.Background(), "alice", "bob")
	if err != nil || interaction == nil {
		t.Fatalf("expected ledger record, got %v / %v", interaction, err)
	}
	if interaction.Type != models.InteractionTypeLike {
		t.Errorf("expected like, got %s", interaction.Type)
	}
}

func TestSubmitAction_MutualLikeCreatesMatch(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	if _, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := env.matchpoint.SubmitAction(ctx, "bob", "alice", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.IsMatch {
		t.Fatal("expected a match on the reciprocal like")
	}
	wantMatchID := models.MatchID(models.PairKey("alice", "bob"))
	if result.MatchID != wantMatchID {
		t.Errorf("expected match id %s, got %s", wantMatchID, result.MatchID)
	}
	if result.ConversationID != models.PairKey("alice", "bob") {
		t.Errorf("expected conversation id %s, got %s", models.PairKey("alice", "bob"), result.ConversationID)
	}

	if _, err := env.store.Get(ctx, models.MatchesCollection, wantMatchID); err != nil {
		t.Errorf("expected match document: %v", err)
	}
	convDoc, err := env.store.Get(ctx, models.ConversationsCollection, result.ConversationID)
	if err != nil {
		t.Fatalf("expected conversation document: %v", err)
	}
	if utils.ExtractString(convDoc, "type") != models.ConversationTypeMatchpoint {
		t.Errorf("expected matchpoint conversation, got %v", convDoc["type"])
	}

	for _, owner := range []string{"alice", "bob"} {
		if _, err := env.store.Get(ctx, models.PreviewsCollection, models.PreviewID(owner, result.ConversationID)); err != nil {
			t.Errorf("expected preview for %s: %v", owner, err)
		}
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		interaction, _ := env.ledger.Get(ctx, pair[0], pair[1])
		if interaction == nil || !interaction.ResultedInMatch {
			t.Errorf("expected %s->%s to be marked resulted_in_match", pair[0], pair[1])
		}
	}
}

func TestSubmitAction_RepeatLikeIsFreeAndIdempotent(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	if _, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Interaction already recorded" {
		t.Errorf("unexpected message: %q", result.Message)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != 1 {
		t.Errorf("repeat like must not consume quota, count %v", doc["daily_swipes_count"])
	}
	if utils.ExtractInt(doc, "total_likes_sent") != 1 {
		t.Errorf("repeat like must not re-fire the creation event, counter %v", doc["total_likes_sent"])
	}
	if got := env.countDocs(t, models.InteractionsCollection); got != 1 {
		t.Errorf("expected a single ledger record, got %d", got)
	}
}

func TestSubmitAction_ConcurrentMutualLike(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*ActionResult, 2)
	errs := make([]error, 2)
	submit := func(i int, caller, target string) {
		defer wg.Done()
		results[i], errs[i] = env.matchpoint.SubmitAction(ctx, caller, target, models.InteractionTypeLike)
	}
	wg.Add(2)
	go submit(0, "alice", "bob")
	go submit(1, "bob", "alice")
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	// Ledger writes precede the reciprocal read, so at least one side must
	// observe the mutual like.
	if !results[0].IsMatch && !results[1].IsMatch {
		t.Error("expected at least one side to detect the match")
	}
	if got := env.countDocs(t, models.MatchesCollection); got != 1 {
		t.Errorf("expected exactly one match document, got %d", got)
	}
	if got := env.countDocs(t, models.ConversationsCollection); got != 1 {
		t.Errorf("expected exactly one conversation, got %d", got)
	}
}

func TestSubmitAction_ValidationFailures(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	cases := []struct {
		name     string
		caller   string
		target   string
		action   string
		wantCode ErrorCode
	}{
		{"missing caller", "", "bob", models.InteractionTypeLike, CodeUnauthenticated},
		{"missing target", "alice", "", models.InteractionTypeLike, CodeInvalidArgument},
		{"bad action", "alice", "bob", "superlike", CodeInvalidArgument},
		{"self target", "alice", "alice", models.InteractionTypeLike, CodeInvalidArgument},
		{"unknown caller", "ghost", "bob", models.InteractionTypeLike, CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.matchpoint.SubmitAction(ctx, tc.caller, tc.target, tc.action)
			if err == nil {
				t.Fatal("expected error")
			}
			if CodeOf(err) != tc.wantCode {
				t.Errorf("expected code %s, got %s (%v)", tc.wantCode, CodeOf(err), err)
			}
		})
	}
}

func TestSubmitAction_QuotaExhausted(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	env.seedUser(t, "carol", "Carol")
	ctx := context.Background()

	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit - 1,
		"last_swipe_date":    MidnightUTC(env.now),
	})

	// Last slot is still usable.
	result, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("unexpected error on last slot: %v", err)
	}
	if result.RemainingQuota != 0 {
		t.Errorf("expected remaining 0, got %d", result.RemainingQuota)
	}

	// A new pair past the limit is rejected.
	_, err = env.matchpoint.SubmitAction(ctx, "alice", "carol", models.InteractionTypeLike)
	if CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}

	// Repeat action on a known pair stays free even at the limit.
	result, err = env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("repeat action must not be quota-limited: %v", err)
	}
	if result.Message != "Interaction already recorded" {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestSubmitAction_QuotaLazyReset(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	yesterday := MidnightUTC(env.now).Add(-24 * time.Hour)
	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": models.DailySwipeLimit,
		"last_swipe_date":    yesterday,
	})

	result, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("stale counter must reset lazily: %v", err)
	}
	if result.RemainingQuota != models.DailySwipeLimit-1 {
		t.Errorf("expected remaining %d, got %d", models.DailySwipeLimit-1, result.RemainingQuota)
	}

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "daily_swipes_count") != 1 {
		t.Errorf("expected count reset to 1, got %v", doc["daily_swipes_count"])
	}
	if !utils.ExtractTime(doc, "last_swipe_date").Equal(MidnightUTC(env.now)) {
		t.Errorf("expected last swipe date moved to today, got %v", doc["last_swipe_date"])
	}
}

func TestSubmitAction_DislikeRemovesMatchKeepsConversation(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	result, _ := env.matchpoint.SubmitAction(ctx, "bob", "alice", models.InteractionTypeLike)
	if !result.IsMatch {
		t.Fatal("setup: expected a match")
	}
	conversationID := result.ConversationID

	dislike, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeDislike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dislike.Message != "Match removed" {
		t.Errorf("unexpected message: %q", dislike.Message)
	}

	matchID := models.MatchID(models.PairKey("alice", "bob"))
	if _, err := env.store.Get(ctx, models.MatchesCollection, matchID); err != store.ErrNotFound {
		t.Error("expected match document to be deleted")
	}
	if _, err := env.store.Get(ctx, models.ConversationsCollection, conversationID); err != nil {
		t.Errorf("conversation must survive the unmatch: %v", err)
	}
	for _, owner := range []string{"alice", "bob"} {
		if _, err := env.store.Get(ctx, models.PreviewsCollection, models.PreviewID(owner, conversationID)); err != nil {
			t.Errorf("preview for %s must survive the unmatch: %v", owner, err)
		}
	}

	interaction, _ := env.ledger.Get(ctx, "alice", "bob")
	if interaction.Type != models.InteractionTypeDislike {
		t.Errorf("expected dislike, got %s", interaction.Type)
	}
	wantExpiry := env.now.Add(models.InteractionExpiryDays * 24 * time.Hour)
	if !interaction.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, interaction.ExpiresAt)
	}
}

func TestSubmitAction_RematchReusesConversation(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	first, _ := env.matchpoint.SubmitAction(ctx, "bob", "alice", models.InteractionTypeLike)
	env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeDislike)

	// Bob's like is still on the ledger, so Alice liking again re-matches.
	again, err := env.matchpoint.SubmitAction(ctx, "alice", "bob", models.InteractionTypeLike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.IsMatch {
		t.Fatal("expected a re-match")
	}
	if again.ConversationID != first.ConversationID {
		t.Errorf("re-match must reuse conversation %s, got %s", first.ConversationID, again.ConversationID)
	}
	if got := env.countDocs(t, models.ConversationsCollection); got != 1 {
		t.Errorf("expected one conversation after re-match, got %d", got)
	}

	interaction, _ := env.ledger.Get(ctx, "alice", "bob")
	if interaction.Type != models.InteractionTypeLike {
		t.Errorf("expected like after re-like, got %s", interaction.Type)
	}
	if !interaction.ExpiresAt.IsZero() {
		t.Errorf("re-like must clear the dislike expiry, got %v", interaction.ExpiresAt)
	}
}

func TestRemainingQuota(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")
	ctx := context.Background()

	env.store.Update(ctx, models.UsersCollection, "alice", store.Document{
		"daily_swipes_count": 10,
		"last_swipe_date":    MidnightUTC(env.now),
	})

	status, err := env.matchpoint.RemainingQuota(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != models.DailySwipeLimit-10 {
		t.Errorf("expected remaining %d, got %d", models.DailySwipeLimit-10, status.Remaining)
	}
	if status.Limit != models.DailySwipeLimit {
		t.Errorf("expected limit %d, got %d", models.DailySwipeLimit, status.Limit)
	}
	if !status.ResetsAt.Equal(MidnightUTC(env.now).Add(24 * time.Hour)) {
		t.Errorf("expected reset at next UTC midnight, got %v", status.ResetsAt)
	}

	if _, err := env.matchpoint.RemainingQuota(ctx, ""); CodeOf(err) != CodeUnauthenticated {
		t.Errorf("expected unauthenticated, got %v", err)
	}
	if _, err := env.matchpoint.RemainingQuota(ctx, "ghost"); CodeOf(err) != CodeNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}
