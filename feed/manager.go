// Package feed assina o stream de mensagens em tempo real do backend
// gerenciado, uma conexão WebSocket por usuário logado, e entrega cada
// evento validado ao tracker.
package feed

import (
	"log"
	"sync"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// Sink recebe os eventos já validados do feed.
// Implementado por services.TrackerService.
type Sink interface {
	RecordActivity(userKey string, event models.MessageEvent)
}

// Manager mantém uma assinatura por usuário logado. Start e Stop são
// idempotentes; o tracker chama no login e no logout.
type Manager struct {
	realtimeURL string
	serviceKey  string
	sink        Sink

	mu            sync.Mutex
	subscriptions map[string]*subscription
}

func NewManager(realtimeURL, serviceKey string, sink Sink) *Manager {
	return &Manager{
		realtimeURL:   realtimeURL,
		serviceKey:    serviceKey,
		sink:          sink,
		subscriptions: make(map[string]*subscription),
	}
}

func (m *Manager) Start(userKey string) {
	if userKey == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subscriptions[userKey]; exists {
		return
	}

	sub := newSubscription(m.realtimeURL, m.serviceKey, userKey, m.sink)
	m.subscriptions[userKey] = sub
	go sub.run()

	log.Printf("[feed] subscription started for user %s", userKey)
}

func (m *Manager) Stop(userKey string) {
	m.mu.Lock()
	sub, exists := m.subscriptions[userKey]
	if exists {
		delete(m.subscriptions, userKey)
	}
	m.mu.Unlock()

	if !exists {
		return
	}

	sub.stop()
	log.Printf("[feed] subscription stopped for user %s", userKey)
}

// Shutdown derruba todas as assinaturas. Usado no desligamento do processo.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for userKey, sub := range m.subscriptions {
		subs = append(subs, sub)
		delete(m.subscriptions, userKey)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}
