// Package crypto — criptografia AES-256-GCM para dados sensíveis em repouso.
//
// Os previews de mensagem guardados no cache local de conversas são texto de
// negociação entre carvoaria e siderúrgica; no disco eles ficam cifrados.
//
// AES-256-GCM:
// - AES-256: cifra simétrica com chave de 256 bits
// - GCM: modo autenticado — garante sigilo e integridade de uma vez
// - Nonce: 12 bytes aleatórios por operação, prefixado ao ciphertext
//
// A chave vem de uma passphrase de configuração derivada com argon2id
// (DeriveKey). O salt é fixado por instalação e guardado junto do banco.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Parâmetros do argon2id. Valores moderados — a derivação roda uma vez
// por boot do daemon, não por requisição.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024 // KB
	kdfThreads = 4
	keyLen     = 32
)

// SaltSize, tamanho do salt por instalação (bytes).
const SaltSize = 16

// DeriveKey deriva a chave AES-256 a partir da passphrase + salt com argon2id.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty passphrase")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be exactly %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, keyLen), nil
}

// NewSalt gera um salt aleatório de instalação.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("salt generation: %w", err)
	}
	return salt, nil
}

// Encrypt cifra o plaintext com AES-256-GCM.
// O retorno é base64: nonce (12 bytes) + ciphertext + tag.
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation: %w", err)
	}

	// Seal com o nonce como prefixo do dst — tudo vai num campo só.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverte o Encrypt. Falha se a tag de autenticação não bater
// (dado corrompido ou chave errada).
func Decrypt(encoded string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
