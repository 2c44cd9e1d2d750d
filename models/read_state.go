package models

import "time"

// ReadStateMap, mapa conversa -> último instante lido de um usuário.
// É o único estado persistido do rastreador; tudo o mais é derivado.
// Conversa ausente do mapa = nunca lida (equivale ao instante zero).
type ReadStateMap map[string]time.Time

// Clone copia o mapa. As consultas da API devolvem cópias para que o
// chamador não alcance o estado interno do rastreador.
func (m ReadStateMap) Clone() ReadStateMap {
	out := make(ReadStateMap, len(m))
	for id, t := range m {
		out[id] = t
	}
	return out
}

// ReadMark, uma linha da tabela conversation_reads.
type ReadMark struct {
	UserKey        string    `json:"user_key"`
	ConversationID string    `json:"conversation_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}
