// Package ratelimit — rate limiting por usuário com janela deslizante.
//
// Protege os endpoints de escrita da API local (mark-read em rajada quando o
// app re-renderiza uma lista, por exemplo) sem depender de nada externo:
// em memória é suficiente para um daemon de instância única.
//
// Por que um pacote separado?
// handlers e middleware importam o limiter; mantê-lo como dependência folha
// evita ciclo de import (ratelimit não importa nenhum pacote do projeto).
package ratelimit

import (
	"sync"
	"time"
)

// bucket, contador de requisições de um usuário + início da janela atual.
type bucket struct {
	count       int
	windowStart time.Time
}

// UserRateLimiter, rate limiting por chave de usuário.
//
// Janela deslizante: a primeira requisição abre a janela (count = 1);
// as seguintes incrementam até maxRequests; passado o intervalo, a
// janela reinicia.
//
//	limiter := ratelimit.NewUserRateLimiter(60, time.Minute)
//	if !limiter.Allow(userKey) { /* 429 */ }
type UserRateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*bucket
	maxRequests int
	window      time.Duration
	stopCleanup chan struct{}
}

// NewUserRateLimiter cria o limiter e inicia a goroutine de limpeza que
// remove buckets vencidos (evita crescimento sem fim do map).
func NewUserRateLimiter(maxRequests int, window time.Duration) *UserRateLimiter {
	rl := &UserRateLimiter{
		buckets:     make(map[string]*bucket),
		maxRequests: maxRequests,
		window:      window,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow verifica se a chave ainda tem cota na janela atual.
// Devolve false quando o limite foi atingido.
func (rl *UserRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{count: 1, windowStart: now}
		return true
	}

	if b.count >= rl.maxRequests {
		return false
	}
	b.count++
	return true
}

// Reset zera o contador de uma chave (usado no logout).
func (rl *UserRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.buckets, key)
}

// Close encerra a goroutine de limpeza.
func (rl *UserRateLimiter) Close() {
	close(rl.stopCleanup)
}

// cleanupLoop varre o map a cada minuto e descarta janelas vencidas.
func (rl *UserRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, b := range rl.buckets {
				if now.Sub(b.windowStart) >= rl.window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}
