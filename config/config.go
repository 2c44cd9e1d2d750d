// Package config centraliza toda a configuração do daemon.
// Lê environment variables e aceita um arquivo .env em desenvolvimento.
//
// Um único struct Config é montado no boot e injetado onde for preciso —
// nada de os.Getenv() espalhado pelo código.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config agrega todos os valores de configuração.
// Cada seção é um struct próprio — um concern por struct.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Backend  BackendConfig
	Email    EmailConfig
	Crypto   CryptoConfig
	Sync     SyncConfig
}

// ServerConfig, ajustes do servidor HTTP local (API consumida pelo app e
// pelo portal web).
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig, ajustes do SQLite local.
type DatabaseConfig struct {
	Path string // caminho do arquivo (ex: ./data/carvao.db)
}

// JWTConfig, validação dos tokens emitidos pelo backend de autenticação.
// O daemon não emite token — só valida a assinatura HS256 compartilhada.
type JWTConfig struct {
	Secret string // chave de assinatura — MANTER EM SEGREDO
}

// BackendConfig, endereços do backend gerenciado do marketplace.
type BackendConfig struct {
	APIURL       string        // REST (ex: https://api.carvaoapp.com.br)
	RealtimeURL  string        // feed de mensagens (ex: wss://realtime.carvaoapp.com.br/stream)
	ServiceKey   string        // chave de serviço enviada no header apikey
	FetchTimeout time.Duration // timeout do fetch de conversas
}

// EmailConfig, envio de avisos por e-mail (Resend). Opcional — sem chave,
// o daemon sobe sem notificação por e-mail.
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	AppURL       string // URL pública do portal, usada nos links
}

// CryptoConfig, cifra dos previews de mensagem em repouso.
type CryptoConfig struct {
	PreviewPassphrase string // deriva a chave AES via argon2id
}

// SyncConfig, cadência do snapshot periódico de conversas.
type SyncConfig struct {
	SnapshotInterval time.Duration
}

// Load monta o Config a partir das environment variables.
// Se existir um .env, ele é carregado antes (conveniência de dev).
func Load() (*Config, error) {
	// Sem .env não é erro — em produção as variáveis vêm do ambiente.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9040"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	fetchTimeout, err := strconv.Atoi(getEnv("BACKEND_FETCH_TIMEOUT_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_FETCH_TIMEOUT_SECONDS: %w", err)
	}

	snapshotInterval, err := strconv.Atoi(getEnv("SYNC_SNAPSHOT_INTERVAL_MINUTES", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SNAPSHOT_INTERVAL_MINUTES: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	backendURL := getEnv("BACKEND_API_URL", "")
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_API_URL environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/carvao.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		Backend: BackendConfig{
			APIURL:       backendURL,
			RealtimeURL:  getEnv("BACKEND_REALTIME_URL", ""),
			ServiceKey:   getEnv("BACKEND_SERVICE_KEY", ""),
			FetchTimeout: time.Duration(fetchTimeout) * time.Second,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", ""),
			AppURL:       getEnv("APP_PUBLIC_URL", ""),
		},
		Crypto: CryptoConfig{
			PreviewPassphrase: getEnv("PREVIEW_PASSPHRASE", ""),
		},
		Sync: SyncConfig{
			SnapshotInterval: time.Duration(snapshotInterval) * time.Minute,
		},
	}

	return cfg, nil
}

// Addr devolve o endereço de escuta do servidor (ex: "0.0.0.0:9040").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv lê uma environment variable com valor de fallback.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
