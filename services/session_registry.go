package services

import (
	"sync"
	"time"
)

// sessionEntry, uma sessão com o seu mutex. O mutex vive fora do estado
// para o registry poder entregar a entrada sem copiar lock.
type sessionEntry struct {
	mu    sync.Mutex
	state *session
}

// sessionRegistry, o mapa de sessões vivas indexado por userKey.
// O RWMutex protege só o mapa; o estado de cada sessão tem o próprio lock.
type sessionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{entries: make(map[string]*sessionEntry)}
}

// getOrCreate devolve a sessão do usuário, criando uma vazia se não
// existir. O segundo retorno diz se acabou de ser criada.
func (r *sessionRegistry) getOrCreate(userKey string) (*sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[userKey]; exists {
		return entry, false
	}

	entry := &sessionEntry{state: &session{
		reads:    make(map[string]time.Time),
		snapshot: make(map[string]time.Time),
	}}
	r.entries[userKey] = entry
	return entry, true
}

func (r *sessionRegistry) get(userKey string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[userKey]
	return entry, exists
}

// keys devolve os userKeys das sessões vivas.
func (r *sessionRegistry) keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for userKey := range r.entries {
		keys = append(keys, userKey)
	}
	return keys
}

// delete remove a sessão; devolve false se ela não existia.
func (r *sessionRegistry) delete(userKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[userKey]; !exists {
		return false
	}
	delete(r.entries, userKey)
	return true
}
