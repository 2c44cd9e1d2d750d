// Package cache — cache genérico em memória com TTL.
//
// TTLCache guarda entradas que expiram sozinhas depois de um intervalo fixo.
// Thread-safe: protegido por sync.RWMutex (várias goroutines podem ler ao
// mesmo tempo; escrita bloqueia tudo).
//
// Usos no daemon:
// - Lista de conversas vinda do backend (evita refetch a cada GET do portal)
// - Supressão de e-mails de notificação repetidos por (usuário, conversa)
//
// Entradas vencidas não são devolvidas pelo Get, mas a remoção física do map
// acontece em background — assim o Get continua barato (só RLock).
package cache

import (
	"sync"
	"time"
)

// entry, um registro do cache: valor + instante de expiração.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, cache genérico em memória com expiração automática.
//
// K e V são parâmetros de tipo (generics, Go 1.18+):
//
//	c := cache.New[string, int](30*time.Second, 5*time.Minute)
//	c.Set("chave", 42)
//	v, ok := c.Get("chave")
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	// stopCleanup encerra a goroutine de limpeza quando Close() é chamado.
	stopCleanup chan struct{}
}

// New cria um TTLCache e inicia a goroutine de limpeza periódica.
//
// ttl: tempo de vida de cada entrada.
// cleanupInterval: frequência da varredura que remove entradas vencidas do map.
// Deve ser menor que o uptime esperado e maior que zero; se for muito maior
// que o ttl o map só cresce até a próxima varredura.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:     make(map[K]entry[V]),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCleanup:
				return
			}
		}
	}()

	return c
}

// Get lê um valor do cache. Devolve (zero, false) se a chave não existe
// ou se a entrada já venceu.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set grava um valor no cache com o TTL configurado.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete remove uma chave específica.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// DeleteFunc remove todas as chaves para as quais o predicado devolve true.
// Usado para invalidar todas as entradas de um usuário no logout.
func (c *TTLCache[K, V]) DeleteFunc(predicate func(key K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if predicate(key) {
			delete(c.entries, key)
		}
	}
}

// Clear esvazia o cache inteiro.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]entry[V])
}

// Len devolve o total de entradas (incluindo vencidas ainda não varridas).
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close encerra a goroutine de limpeza. Deve ser chamado quando o cache
// não for mais usado (evita vazamento de goroutine).
func (c *TTLCache[K, V]) Close() {
	close(c.stopCleanup)
}

// evictExpired remove fisicamente as entradas vencidas.
func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
