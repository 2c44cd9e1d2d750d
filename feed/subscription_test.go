package feed

import (
	"testing"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// fakeSink captura os eventos que passaram pela validação da borda.
type fakeSink struct {
	events []models.MessageEvent
}

func (f *fakeSink) RecordActivity(userKey string, event models.MessageEvent) {
	f.events = append(f.events, event)
}

func newTestSubscription(sink *fakeSink) *subscription {
	return newSubscription("wss://realtime.test", "service-key", "carvoaria@example.com", sink)
}

func TestDispatchDeliversValidEvent(t *testing.T) {
	sink := &fakeSink{}
	sub := newTestSubscription(sink)
	defer sub.stop()

	sub.dispatch([]byte(`{
		"conversation_id": "conv-1",
		"sender_email": "siderurgica@example.com",
		"body_preview": "proposta de carga",
		"created_at": "2026-06-01T10:00:00Z"
	}`))

	if len(sink.events) != 1 {
		t.Fatalf("got %d events, want 1", len(sink.events))
	}

	event := sink.events[0]
	if event.ConversationID != "conv-1" {
		t.Errorf("ConversationID = %q, want conv-1", event.ConversationID)
	}
	if event.SenderEmail != "siderurgica@example.com" {
		t.Errorf("SenderEmail = %q, want siderurgica@example.com", event.SenderEmail)
	}
	want := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	if !event.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", event.CreatedAt, want)
	}
}

func TestDispatchDropsBadTimestamp(t *testing.T) {
	sink := &fakeSink{}
	sub := newTestSubscription(sink)
	defer sub.stop()

	// Timestamp impossível de parsear: o evento é descartado na borda,
	// nunca chega ao tracker e nunca derruba a conexão.
	sub.dispatch([]byte(`{
		"conversation_id": "conv-1",
		"created_at": "invalid-timestamp"
	}`))

	if len(sink.events) != 0 {
		t.Fatalf("got %d events, want 0 (bad created_at must be dropped)", len(sink.events))
	}
}

func TestDispatchDropsMissingConversationID(t *testing.T) {
	sink := &fakeSink{}
	sub := newTestSubscription(sink)
	defer sub.stop()

	sub.dispatch([]byte(`{
		"sender_email": "siderurgica@example.com",
		"created_at": "2026-06-01T10:00:00Z"
	}`))

	if len(sink.events) != 0 {
		t.Fatalf("got %d events, want 0 (event without conversation_id must be dropped)", len(sink.events))
	}
}

func TestDispatchDropsMalformedJSON(t *testing.T) {
	sink := &fakeSink{}
	sub := newTestSubscription(sink)
	defer sub.stop()

	sub.dispatch([]byte(`{not json`))

	if len(sink.events) != 0 {
		t.Fatalf("got %d events, want 0 (malformed payload must be dropped)", len(sink.events))
	}
}
