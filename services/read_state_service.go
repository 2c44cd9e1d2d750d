package services

import (
	"context"
	"log"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/repository"
)

// ReadStateService, fachada fail-soft sobre o ReadStateRepository.
//
// Rastreio de leitura é conveniência, não caminho crítico: nenhuma falha
// de disco pode virar erro para cima. Load devolve mapa vazio quando a
// leitura falha; Persist engole e loga o erro. Em ambos, o estado em
// memória do tracker segue sendo a autoridade.
type ReadStateService interface {
	Load(ctx context.Context, userKey string) models.ReadStateMap
	Persist(ctx context.Context, userKey, conversationID string, lastReadAt time.Time)
}

type readStateService struct {
	readStateRepo repository.ReadStateRepository
}

// NewReadStateService, constructor.
func NewReadStateService(readStateRepo repository.ReadStateRepository) ReadStateService {
	return &readStateService{readStateRepo: readStateRepo}
}

// Load carrega o mapa de leitura persistido de um usuário.
// Sem usuário (chave vazia) ou com erro de leitura, devolve mapa vazio.
func (s *readStateService) Load(ctx context.Context, userKey string) models.ReadStateMap {
	if userKey == "" {
		return make(models.ReadStateMap)
	}

	reads, err := s.readStateRepo.Load(ctx, userKey)
	if err != nil {
		log.Printf("[readstate] load failed for %s, starting empty: %v", userKey, err)
		return make(models.ReadStateMap)
	}
	return reads
}

// Persist grava uma marca de leitura, best-effort.
// A falha é logada e descartada — quem chamou já atualizou a memória e
// não pode ser bloqueado por I/O de disco. Sem usuário, vira no-op.
func (s *readStateService) Persist(ctx context.Context, userKey, conversationID string, lastReadAt time.Time) {
	if userKey == "" || conversationID == "" {
		return
	}

	if err := s.readStateRepo.Upsert(ctx, userKey, conversationID, lastReadAt); err != nil {
		log.Printf("[readstate] persist failed for %s/%s: %v", userKey, conversationID, err)
	}
}
