// Package main — inicialização da camada de repository.
//
// initRepositories cria todas as implementações de repository. Cada
// NewSQLite* recebe a mesma conexão — o sql.DB do Go é um pool
// thread-safe, compartilhar é seguro.
package main

import (
	"database/sql"

	"github.com/gustavoprado11/carvao-app-sub000/repository"
)

// Repositories, container das instâncias de repository.
// Um struct em vez de variáveis soltas mantém as assinaturas do wire-up
// curtas e dá um ponto único para acrescentar repos novos.
type Repositories struct {
	ReadState         repository.ReadStateRepository
	ConversationCache repository.ConversationCacheRepository
	Meta              repository.MetaRepository
}

func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		ReadState:         repository.NewSQLiteReadStateRepo(conn),
		ConversationCache: repository.NewSQLiteConversationCacheRepo(conn),
		Meta:              repository.NewSQLiteMetaRepo(conn),
	}
}
