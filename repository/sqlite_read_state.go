package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/database"
	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// sqliteReadStateRepo, implementação SQLite do ReadStateRepository.
type sqliteReadStateRepo struct {
	db database.TxQuerier
}

// NewSQLiteReadStateRepo, constructor — devolve a interface.
func NewSQLiteReadStateRepo(db database.TxQuerier) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

// Load lê todas as marcas de leitura de um usuário.
//
// Linha com timestamp que não parseia é pulada (com log), não derruba a
// carga inteira — uma marca corrompida no disco custa no máximo uma
// conversa aparecendo como não lida de novo.
func (r *sqliteReadStateRepo) Load(ctx context.Context, userKey string) (models.ReadStateMap, error) {
	query := `
		SELECT conversation_id, last_read_at
		FROM conversation_reads
		WHERE user_key = ?`

	rows, err := r.db.QueryContext(ctx, query, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load read state: %w", err)
	}
	defer rows.Close()

	reads := make(models.ReadStateMap)
	for rows.Next() {
		var conversationID, lastReadAt string
		if err := rows.Scan(&conversationID, &lastReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan read state row: %w", err)
		}

		t, err := time.Parse(time.RFC3339, lastReadAt)
		if err != nil {
			log.Printf("[repository] skipping read mark with bad timestamp: user=%s conversation=%s value=%q",
				userKey, conversationID, lastReadAt)
			continue
		}
		reads[conversationID] = t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating read state rows: %w", err)
	}

	return reads, nil
}

// Upsert grava a marca de leitura de uma conversa.
//
// O WHERE no DO UPDATE impõe last-wins por timestamp: se o que está no
// disco já é mais novo, a linha não muda. É isso que deixa seguro
// persistir em goroutine sem serializar as escritas.
func (r *sqliteReadStateRepo) Upsert(ctx context.Context, userKey, conversationID string, lastReadAt time.Time) error {
	query := `
		INSERT INTO conversation_reads (user_key, conversation_id, last_read_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_key, conversation_id)
		DO UPDATE SET last_read_at = excluded.last_read_at,
		              updated_at   = excluded.updated_at
		WHERE excluded.last_read_at >= conversation_reads.last_read_at`

	_, err := r.db.ExecContext(ctx, query, userKey, conversationID, lastReadAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert read mark: %w", err)
	}
	return nil
}
