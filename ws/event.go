// Package ws gerencia as conexões WebSocket das UIs (app mobile e portal
// web) e a distribuição dos eventos em tempo real do daemon.
//
// Arquitetura:
// - Hub: estrutura central que conhece todas as conexões (Observer)
// - Client: uma conexão WebSocket de uma aba/dispositivo
// - Event: envelope dos eventos trocados
//
// Fluxo típico:
// 1. Chega mensagem nova no feed do backend → tracker recalcula não lidas
// 2. O BadgeService chama BroadcastToUser no Hub
// 3. O Hub entrega aos clients do usuário; o WritePump de cada um escreve
// 4. A UI atualiza o badge sem nenhum request extra
package ws

import "time"

// Event, uma mensagem trocada pelo WebSocket.
//
// Op: tipo do evento. Data: payload específico do tipo.
// Seq: contador crescente atribuído a cada evento que sai do daemon —
// a UI detecta buraco na sequência (seq 5 seguido de seq 7) e refaz o
// GET /api/conversations/unread para ressincronizar.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Operações Client → Server.
const (
	OpHeartbeat = "heartbeat" // a cada 30s — "ainda estou aqui"
	OpFocus     = "focus"     // conversa aberta na tela mudou (id vazio = nenhuma)
	OpAppState  = "app_state" // app foi para foreground/background
	OpMarkRead  = "mark_read" // marcar conversa como lida
)

// Operações Server → Client.
const (
	OpReady                = "ready"                 // primeiro evento após conectar — estado completo de não lidas
	OpHeartbeatAck         = "heartbeat_ack"         // resposta ao heartbeat
	OpUnreadUpdate         = "unread_update"         // contador de não lidas mudou
	OpConversationActivity = "conversation_activity" // mensagem nova em alguma conversa
)

// Estados de app aceitos no evento app_state.
const (
	AppStateForeground = "foreground"
	AppStateBackground = "background"
)

// ReadyData, payload do evento ready.
// Definido aqui (e não em models) para o pacote ws continuar sem
// dependência das camadas de cima.
type ReadyData struct {
	Count  int          `json:"count"`
	Unread []UnreadItem `json:"unread"`
}

// UnreadItem, uma conversa não lida dentro do ready.
type UnreadItem struct {
	ConversationID string    `json:"conversation_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// UnreadUpdateData, payload do unread_update.
type UnreadUpdateData struct {
	Count int `json:"count"`
}

// ConversationActivityData, payload do conversation_activity.
// A UI usa para mover a conversa para o topo da lista e mostrar o preview
// sem esperar o próximo fetch.
type ConversationActivityData struct {
	ConversationID string    `json:"conversation_id"`
	SenderEmail    string    `json:"sender_email"`
	BodyPreview    string    `json:"body_preview"`
	CreatedAt      time.Time `json:"created_at"`
}

// FocusData, payload do focus (Client → Server).
// ConversationID vazio limpa o foco.
type FocusData struct {
	ConversationID string `json:"conversation_id"`
}

// AppStateData, payload do app_state (Client → Server).
type AppStateData struct {
	State string `json:"state"` // foreground ou background
}

// MarkReadData, payload do mark_read (Client → Server).
// ReadAt zerado usa o instante de atividade conhecido da conversa.
type MarkReadData struct {
	ConversationID string    `json:"conversation_id"`
	ReadAt         time.Time `json:"read_at,omitempty"`
}
