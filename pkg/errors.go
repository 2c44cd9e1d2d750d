// Package pkg guarda utilitários compartilhados pelo projeto.
// Este arquivo define os erros de domínio.
//
// Em Go, erros são valores simples. Definimos sentinelas com errors.New()
// para que a comparação seja feita por referência, e não por string:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// A camada de service devolve esses erros (possivelmente embrulhados com %w),
// a camada de handler os converte em status HTTP.
package pkg

import "errors"

// Erros de domínio.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoSession    = errors.New("no active session")
	ErrInternal     = errors.New("internal error")
)
