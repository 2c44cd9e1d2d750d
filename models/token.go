package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, payload do JWT emitido pela camada de autenticação do
// marketplace. O daemon não emite token — só valida a assinatura (HS256,
// segredo compartilhado) e lê a identidade.
//
// Fica no pacote models porque middleware, ws e services usam o mesmo
// struct — colocar aqui evita ciclo de import entre as camadas.
type TokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"` // carvoaria ou siderurgica
	jwt.RegisteredClaims
}
