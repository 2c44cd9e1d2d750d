package services

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
)

// AuthService valida os JWTs emitidos pela camada de autenticação do
// marketplace. O daemon nunca emite token; ele só confere a assinatura
// HS256 (segredo compartilhado com o backend) e extrai a identidade.
type AuthService interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

type authService struct {
	jwtSecret []byte
}

// NewAuthService, constructor.
func NewAuthService(jwtSecret string) AuthService {
	return &authService{jwtSecret: []byte(jwtSecret)}
}

// ValidateAccessToken confere a assinatura e devolve os claims.
//
// Além da validade criptográfica, o claim email precisa existir — ele é a
// chave de usuário de todo o daemon. O e-mail sai daqui normalizado
// (minúsculas, sem espaços), igual ao user_key do banco.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	claims.Email = NormalizeUserKey(claims.Email)
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token missing email claim", pkg.ErrUnauthorized)
	}

	return claims, nil
}

// NormalizeUserKey normaliza um e-mail para servir de chave de usuário:
// minúsculas e sem espaços nas pontas. Toda chave que circula entre
// tracker, repositories e hub passa por aqui.
func NormalizeUserKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
