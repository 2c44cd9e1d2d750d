package repository

import (
	"context"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// ConversationCacheRepository, cache offline do snapshot de conversas.
//
// O cache é trocado por inteiro a cada fetch bem-sucedido no backend
// (ReplaceAll roda em transação — nunca fica pela metade) e lido no boot
// da sessão para semear o contador de não lidas antes do primeiro fetch.
//
// O campo LastMessageBody das conversas passa por aqui opaco: o service
// cifra antes de gravar e decifra depois de ler.
type ConversationCacheRepository interface {
	Load(ctx context.Context, userKey string) ([]models.Conversation, error)
	ReplaceAll(ctx context.Context, userKey string, convs []models.Conversation) error
}
