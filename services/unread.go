package services

import (
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// CountUnread conta quantas conversas do snapshot estão não lidas.
//
// Função pura — sem efeito colateral nenhum. Quem recalcula é o tracker;
// quem publica badge é o BadgeService. Manter o cálculo isolado aqui deixa
// a regra testável sem montar sessão.
//
// Regra: conversa não lida <=> atividade estritamente maior que a marca de
// leitura. Conversa sem marca conta como nunca lida (instante zero), então
// qualquer atividade a torna não lida. Timestamps iguais NÃO são não lida —
// marcar como lida com o instante exato da última mensagem zera a conversa.
func CountUnread(snapshot map[string]time.Time, reads models.ReadStateMap) int {
	count := 0
	for id, activityAt := range snapshot {
		if activityAt.After(reads[id]) {
			count++
		}
	}
	return count
}

// UnreadIDs devolve os ids das conversas não lidas — mesma regra do
// CountUnread, usada para montar o resumo por conversa das UIs.
func UnreadIDs(snapshot map[string]time.Time, reads models.ReadStateMap) []string {
	var ids []string
	for id, activityAt := range snapshot {
		if activityAt.After(reads[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}
