package models

import "time"

// Papéis dos dois lados do marketplace. O valor viaja no claim "role" do
// token e no query string do fetch de conversas — o backend usa os mesmos
// identificadores.
const (
	RoleSupplier  = "carvoaria"
	RoleSteelMill = "siderurgica"
)

// Conversation, uma conversa entre uma carvoaria e uma siderúrgica.
//
// O daemon só entende do id e do instante da última mensagem; o resto
// (outra ponta, status, preview) é carregado para repassar às UIs e para
// o aviso por e-mail. LastMessageAt já chega aqui validado — entrada com
// timestamp malformado é descartada na borda e nunca vira Conversation.
type Conversation struct {
	ID              string    `json:"id"`
	OtherPartyEmail string    `json:"other_party_email"`
	Status          string    `json:"status"`
	LastMessageBody string    `json:"last_message_body"`
	LastMessageAt   time.Time `json:"last_message_at"`
}

// UnreadSummary, estado de leitura de uma conversa, derivado em memória.
// Vai para o app e para o portal montarem badges por conversa.
type UnreadSummary struct {
	ConversationID string    `json:"conversation_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Unread         bool      `json:"unread"`
}

// UnreadState, resposta completa do estado de não lidas de um usuário.
type UnreadState struct {
	Count         int             `json:"count"`
	Conversations []UnreadSummary `json:"conversations"`
}
