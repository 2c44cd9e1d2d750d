package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/database"
	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// sqliteConversationCacheRepo, implementação SQLite do ConversationCacheRepository.
//
// Guarda *sql.DB (e não TxQuerier) porque ReplaceAll abre a própria
// transação via database.WithTx.
type sqliteConversationCacheRepo struct {
	db *sql.DB
}

// NewSQLiteConversationCacheRepo, constructor — devolve a interface.
func NewSQLiteConversationCacheRepo(db *sql.DB) ConversationCacheRepository {
	return &sqliteConversationCacheRepo{db: db}
}

// Load lê o cache de conversas de um usuário.
// Linha com last_activity_at malformado é pulada com log.
func (r *sqliteConversationCacheRepo) Load(ctx context.Context, userKey string) ([]models.Conversation, error) {
	query := `
		SELECT conversation_id, other_party_email, status, preview_enc, last_activity_at
		FROM conversation_cache
		WHERE user_key = ?`

	rows, err := r.db.QueryContext(ctx, query, userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation cache: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var lastActivityAt string
		if err := rows.Scan(&conv.ID, &conv.OtherPartyEmail, &conv.Status, &conv.LastMessageBody, &lastActivityAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached conversation: %w", err)
		}

		t, err := time.Parse(time.RFC3339, lastActivityAt)
		if err != nil {
			log.Printf("[repository] skipping cached conversation with bad timestamp: user=%s conversation=%s value=%q",
				userKey, conv.ID, lastActivityAt)
			continue
		}
		conv.LastMessageAt = t
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached conversations: %w", err)
	}

	return convs, nil
}

// ReplaceAll troca o cache inteiro do usuário pelo snapshot novo.
// DELETE + INSERTs rodam na mesma transação — ou o cache novo entra
// completo, ou o antigo permanece intacto.
func (r *sqliteConversationCacheRepo) ReplaceAll(ctx context.Context, userKey string, convs []models.Conversation) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM conversation_cache WHERE user_key = ?", userKey,
		); err != nil {
			return fmt.Errorf("failed to clear conversation cache: %w", err)
		}

		insert := `
			INSERT INTO conversation_cache
				(user_key, conversation_id, other_party_email, status, preview_enc, last_activity_at, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`

		for _, conv := range convs {
			if _, err := tx.ExecContext(ctx, insert,
				userKey,
				conv.ID,
				conv.OtherPartyEmail,
				conv.Status,
				conv.LastMessageBody,
				conv.LastMessageAt.UTC().Format(time.RFC3339),
			); err != nil {
				return fmt.Errorf("failed to insert cached conversation %s: %w", conv.ID, err)
			}
		}

		return nil
	})
}
