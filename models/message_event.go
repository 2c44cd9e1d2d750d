package models

import "time"

// MessageEvent, evento do feed em tempo real: uma mensagem nova foi
// inserida em alguma conversa do usuário.
//
// CreatedAt já chega validado — o feed descarta (e loga) eventos com
// timestamp que não parseia, em vez de abortar o lote.
type MessageEvent struct {
	ConversationID string    `json:"conversation_id"`
	SenderEmail    string    `json:"sender_email"`
	BodyPreview    string    `json:"body_preview"`
	CreatedAt      time.Time `json:"created_at"`
}
