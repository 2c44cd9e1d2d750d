package repository

import (
	"context"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// ReadStateRepository, persistência das marcas de leitura.
//
// Load: devolve o mapa completo de um usuário (vazio se não houver nada).
// Upsert: grava a marca de leitura de uma conversa. A escrita é last-wins
// por timestamp — um Upsert com instante mais antigo do que o gravado é
// ignorado, então duas escritas concorrentes nunca deixam valor velho
// por cima de valor novo no disco.
type ReadStateRepository interface {
	Load(ctx context.Context, userKey string) (models.ReadStateMap, error)
	Upsert(ctx context.Context, userKey, conversationID string, lastReadAt time.Time) error
}
