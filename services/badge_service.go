package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// BadgePublisher recebe o contador de não lidas recalculado e o leva até
// onde ele aparece: os clients conectados (evento unread_update no hub) e
// o ícone do app (endpoint de badge do serviço de push do backend).
//
// Publish é fire-and-forget do ponto de vista do tracker — nunca devolve
// erro e nunca bloqueia o recálculo.
type BadgePublisher interface {
	Publish(userKey string, count int)
}

// badgeState, controle de coalescência do push HTTP de um usuário.
// Enquanto um POST está em voo, publicações novas só sobrescrevem pending;
// ao terminar, o valor pendente mais recente é enviado. Rajadas de
// recálculo viram no máximo dois POSTs.
type badgeState struct {
	inflight   bool
	pending    int
	hasPending bool
}

type badgeService struct {
	hub        ws.EventPublisher
	httpClient *http.Client
	badgeURL   string // vazio = push de badge desativado
	serviceKey string

	mu     sync.Mutex
	states map[string]*badgeState
}

// NewBadgeService, constructor.
//
// apiURL: base REST do backend; o endpoint de badge é {apiURL}/push/badge.
// Com apiURL vazio o service só faz o broadcast via hub.
func NewBadgeService(hub ws.EventPublisher, apiURL, serviceKey string, timeout time.Duration) BadgePublisher {
	badgeURL := ""
	if apiURL != "" {
		badgeURL = apiURL + "/push/badge"
	}
	return &badgeService{
		hub:        hub,
		httpClient: &http.Client{Timeout: timeout},
		badgeURL:   badgeURL,
		serviceKey: serviceKey,
		states:     make(map[string]*badgeState),
	}
}

// Publish propaga o contador novo.
//
// O broadcast para os clients do hub é síncrono e barato (só enfileira nos
// buffers de envio). O POST para o serviço de push sai em goroutine com
// coalescência por usuário — a última escrita vence.
func (s *badgeService) Publish(userKey string, count int) {
	s.hub.BroadcastToUser(userKey, ws.Event{
		Op:   ws.OpUnreadUpdate,
		Data: ws.UnreadUpdateData{Count: count},
	})

	if s.badgeURL == "" {
		return
	}

	s.mu.Lock()
	st, ok := s.states[userKey]
	if !ok {
		st = &badgeState{}
		s.states[userKey] = st
	}
	if st.inflight {
		st.pending = count
		st.hasPending = true
		s.mu.Unlock()
		return
	}
	st.inflight = true
	s.mu.Unlock()

	go s.pushLoop(userKey, count)
}

// pushLoop envia o badge e, se durante o envio chegou valor mais novo,
// envia esse também. Sai quando não há mais pendência.
func (s *badgeService) pushLoop(userKey string, count int) {
	for {
		if err := s.push(userKey, count); err != nil {
			// Badge atrasado é tolerável; o próximo recálculo corrige.
			log.Printf("[badge] push failed for %s: %v", userKey, err)
		}

		s.mu.Lock()
		st := s.states[userKey]
		if st == nil || !st.hasPending {
			if st != nil {
				st.inflight = false
			}
			s.mu.Unlock()
			return
		}
		count = st.pending
		st.hasPending = false
		s.mu.Unlock()
	}
}

// push faz o POST do contador para o serviço de push do backend.
func (s *badgeService) push(userKey string, count int) error {
	body, err := json.Marshal(map[string]any{
		"email": userKey,
		"count": count,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal badge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.badgeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build badge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.serviceKey != "" {
		req.Header.Set("apikey", s.serviceKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("badge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("badge endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
