package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// ─── Fakes ───

type fakeReadStates struct {
	mu        sync.Mutex
	stored    map[string]models.ReadStateMap
	persisted []models.ReadMark
}

func newFakeReadStates() *fakeReadStates {
	return &fakeReadStates{stored: make(map[string]models.ReadStateMap)}
}

func (f *fakeReadStates) Load(_ context.Context, userKey string) models.ReadStateMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reads, ok := f.stored[userKey]; ok {
		return reads.Clone()
	}
	return make(models.ReadStateMap)
}

func (f *fakeReadStates) Persist(_ context.Context, userKey, conversationID string, lastReadAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, models.ReadMark{
		UserKey:        userKey,
		ConversationID: conversationID,
		LastReadAt:     lastReadAt,
	})
}

func (f *fakeReadStates) persistCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persisted)
}

type fakeConversations struct {
	mu     sync.Mutex
	cached []models.Conversation
}

func (f *fakeConversations) Refresh(context.Context, string, string) ([]models.Conversation, error) {
	// Backend "fora do ar" nos testes: o snapshot vem só do cache local.
	return nil, errors.New("backend unavailable")
}

func (f *fakeConversations) LoadCached(context.Context, string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached, nil
}

func (f *fakeConversations) Invalidate(string) {}
func (f *fakeConversations) Close()            {}

type fakeBadges struct {
	mu        sync.Mutex
	published []int
}

func (f *fakeBadges) Publish(_ string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, count)
}

func (f *fakeBadges) last() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return 0, false
	}
	return f.published[len(f.published)-1], true
}

type fakeHub struct {
	mu     sync.Mutex
	online map[string]bool
	events []ws.Event
}

func newFakeHub() *fakeHub {
	return &fakeHub{online: make(map[string]bool)}
}

func (f *fakeHub) BroadcastToUser(_ string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeHub) IsUserOnline(userKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userKey]
}

func (f *fakeHub) GetOnlineUserKeys() []string { return nil }

type fakeFeed struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (f *fakeFeed) Start(userKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, userKey)
}

func (f *fakeFeed) Stop(userKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, userKey)
}

type trackerFixture struct {
	tracker    TrackerService
	readStates *fakeReadStates
	convs      *fakeConversations
	badges     *fakeBadges
	hub        *fakeHub
	feed       *fakeFeed
}

func newTrackerFixture() *trackerFixture {
	fx := &trackerFixture{
		readStates: newFakeReadStates(),
		convs:      &fakeConversations{},
		badges:     &fakeBadges{},
		hub:        newFakeHub(),
		feed:       &fakeFeed{},
	}
	fx.tracker = NewTrackerService(fx.readStates, fx.convs, fx.badges, fx.hub)
	fx.tracker.SetFeedController(fx.feed)
	return fx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─── Testes ───

const testUser = "carvoaria@example.com"

func TestLoginSeedsSnapshotFromCache(t *testing.T) {
	fx := newTrackerFixture()
	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	fx.convs.cached = []models.Conversation{{ID: "conv-1", LastMessageAt: t10}}

	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	if got := fx.tracker.UnreadCount(testUser); got != 1 {
		t.Fatalf("UnreadCount() = %d, want 1", got)
	}
	if count, ok := fx.badges.last(); !ok || count != 1 {
		t.Fatalf("badge published = %d (%v), want 1", count, ok)
	}
}

func TestLoginAppliesPersistedReadMarks(t *testing.T) {
	fx := newTrackerFixture()
	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	fx.convs.cached = []models.Conversation{{ID: "conv-1", LastMessageAt: t10}}
	fx.readStates.stored[testUser] = models.ReadStateMap{"conv-1": t10}

	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() = %d, want 0", got)
	}
}

func TestRecordActivityIncrementsAndIgnoresStaleEvents(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	t11 := mustTime(t, "2026-03-10T11:00:00Z")

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      t11,
	})
	if got := fx.tracker.UnreadCount(testUser); got != 1 {
		t.Fatalf("UnreadCount() after activity = %d, want 1", got)
	}

	// Evento atrasado (timestamp menor que o já registrado): ignorado.
	fx.tracker.MarkRead(testUser, "conv-1", time.Time{})
	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      t10,
	})
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after stale event = %d, want 0", got)
	}
}

func TestRecordActivityWithoutSessionIsNoOp(t *testing.T) {
	fx := newTrackerFixture()

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})

	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() = %d, want 0", got)
	}
}

func TestSelfSentMessageIsBornRead(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "Carvoaria@Example.com", // normalização cobre maiúsculas
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})

	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() = %d, want 0", got)
	}
}

func TestFocusedConversationStaysRead(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)
	fx.tracker.SetAppState(testUser, ws.AppStateForeground)
	fx.tracker.SetActiveConversation(testUser, "conv-1")

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})

	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() = %d, want 0", got)
	}
}

func TestFocusedConversationInBackgroundCountsUnread(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)
	fx.tracker.SetActiveConversation(testUser, "conv-1")
	fx.tracker.SetAppState(testUser, ws.AppStateBackground)

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})

	// App em segundo plano: ninguém está olhando a conversa, conta.
	if got := fx.tracker.UnreadCount(testUser); got != 1 {
		t.Fatalf("UnreadCount() = %d, want 1", got)
	}
}

func TestMarkReadIsIdempotentAndMonotonic(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	t11 := mustTime(t, "2026-03-10T11:00:00Z")
	t12 := mustTime(t, "2026-03-10T12:00:00Z")

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      t12,
	})

	fx.tracker.MarkRead(testUser, "conv-1", time.Time{})
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after mark read = %d, want 0", got)
	}
	waitFor(t, "first persist", func() bool { return fx.readStates.persistCount() == 1 })

	// Repetir não persiste de novo nem muda nada.
	fx.tracker.MarkRead(testUser, "conv-1", time.Time{})
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after repeated mark read = %d, want 0", got)
	}
	if got := fx.readStates.persistCount(); got != 1 {
		t.Fatalf("persist count after repeated mark read = %d, want 1", got)
	}

	// Timestamp explícito mais antigo não regride a marca.
	fx.tracker.MarkRead(testUser, "conv-1", t11)
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after older mark read = %d, want 0", got)
	}
}

func TestMarkReadUnknownConversationWithoutTimestampIsNoOp(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	fx.tracker.MarkRead(testUser, "conv-ghost", time.Time{})

	if got := fx.readStates.persistCount(); got != 0 {
		t.Fatalf("persist count = %d, want 0", got)
	}
}

func TestSetActiveConversationMarksKnownActivityRead(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})
	if got := fx.tracker.UnreadCount(testUser); got != 1 {
		t.Fatalf("UnreadCount() before focus = %d, want 1", got)
	}

	fx.tracker.SetActiveConversation(testUser, "conv-1")
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after focus = %d, want 0", got)
	}
}

func TestForegroundResumeReloadsPersistedMarks(t *testing.T) {
	fx := newTrackerFixture()
	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	fx.convs.cached = []models.Conversation{{ID: "conv-1", LastMessageAt: t10}}

	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)
	fx.tracker.SetAppState(testUser, ws.AppStateBackground)
	if got := fx.tracker.UnreadCount(testUser); got != 1 {
		t.Fatalf("UnreadCount() before resume = %d, want 1", got)
	}

	// Outra instância marcou a conversa como lida enquanto esta dormia.
	fx.readStates.mu.Lock()
	fx.readStates.stored[testUser] = models.ReadStateMap{"conv-1": t10}
	fx.readStates.mu.Unlock()

	fx.tracker.SetAppState(testUser, ws.AppStateForeground)
	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after resume = %d, want 0", got)
	}
}

func TestLogoutTearsDownSessionAndZeroesBadge(t *testing.T) {
	fx := newTrackerFixture()
	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	fx.convs.cached = []models.Conversation{{ID: "conv-1", LastMessageAt: t10}}

	fx.tracker.Login(context.Background(), testUser, models.RoleSteelMill)
	if err := fx.tracker.Logout(testUser); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if got := fx.tracker.UnreadCount(testUser); got != 0 {
		t.Fatalf("UnreadCount() after logout = %d, want 0", got)
	}
	if count, ok := fx.badges.last(); !ok || count != 0 {
		t.Fatalf("last badge = %d (%v), want 0", count, ok)
	}

	fx.feed.mu.Lock()
	stopped := len(fx.feed.stopped)
	fx.feed.mu.Unlock()
	if stopped != 1 {
		t.Fatalf("feed stopped %d times, want 1", stopped)
	}

	// Logout repetido: sessão já não existe.
	if err := fx.tracker.Logout(testUser); !errors.Is(err, pkg.ErrNoSession) {
		t.Fatalf("repeated Logout() error = %v, want ErrNoSession", err)
	}
}

func TestLogoutWithoutSessionReturnsErrNoSession(t *testing.T) {
	fx := newTrackerFixture()

	if err := fx.tracker.Logout("desconhecido@example.com"); !errors.Is(err, pkg.ErrNoSession) {
		t.Fatalf("Logout() error = %v, want ErrNoSession", err)
	}
	if len(fx.badges.published) != 0 {
		t.Fatalf("badge published %d times for nonexistent session, want 0", len(fx.badges.published))
	}
}

func TestRecordFullSnapshotReplacesActivity(t *testing.T) {
	fx := newTrackerFixture()
	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	t10 := mustTime(t, "2026-03-10T10:00:00Z")
	t11 := mustTime(t, "2026-03-10T11:00:00Z")

	fx.tracker.RecordFullSnapshot(testUser, map[string]time.Time{
		"conv-1": t10,
		"conv-2": t11,
	})
	if got := fx.tracker.UnreadCount(testUser); got != 2 {
		t.Fatalf("UnreadCount() = %d, want 2", got)
	}

	count, items := fx.tracker.UnreadState(testUser)
	if count != 2 || len(items) != 2 {
		t.Fatalf("UnreadState() = (%d, %d items), want (2, 2 items)", count, len(items))
	}

	state := fx.tracker.FullState(testUser)
	if state.Count != 2 || len(state.Conversations) != 2 {
		t.Fatalf("FullState() = (%d, %d convs), want (2, 2 convs)", state.Count, len(state.Conversations))
	}
	// Ordenado da atividade mais recente para a mais antiga.
	if state.Conversations[0].ConversationID != "conv-2" {
		t.Fatalf("FullState() first conversation = %s, want conv-2", state.Conversations[0].ConversationID)
	}
}

func TestOfflineUserTriggersNotification(t *testing.T) {
	fx := newTrackerFixture()

	var notified []string
	fx.tracker.SetNotifier(notifierFunc(func(userKey, conversationID, senderEmail, preview string) {
		notified = append(notified, conversationID)
	}))

	fx.tracker.Login(context.Background(), testUser, models.RoleSupplier)

	// Nenhuma UI conectada (fakeHub diz offline): dispara o aviso.
	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      mustTime(t, "2026-03-10T10:00:00Z"),
	})
	if len(notified) != 1 {
		t.Fatalf("notified %d times, want 1", len(notified))
	}

	// Com UI online, não dispara.
	fx.hub.mu.Lock()
	fx.hub.online[testUser] = true
	fx.hub.mu.Unlock()

	fx.tracker.RecordActivity(testUser, models.MessageEvent{
		ConversationID: "conv-1",
		SenderEmail:    "siderurgica@example.com",
		CreatedAt:      mustTime(t, "2026-03-10T11:00:00Z"),
	})
	if len(notified) != 1 {
		t.Fatalf("notified %d times after online activity, want 1", len(notified))
	}
}

// notifierFunc adapta uma função ao interface Notifier.
type notifierFunc func(userKey, conversationID, senderEmail, preview string)

func (f notifierFunc) NotifyOffline(userKey, conversationID, senderEmail, preview string) {
	f(userKey, conversationID, senderEmail, preview)
}
