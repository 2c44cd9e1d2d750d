// Package main — inicialização da camada de service.
//
// initServices cria todas as services com injeção por construtor.
// Ordem importa: Tracker depende de ReadStates, Conversations, Badges e
// do Hub; o FeedController e o Notifier entram depois, por setter, para
// fechar o ciclo sem import circular.
package main

import (
	"context"
	"errors"
	"log"

	"github.com/gustavoprado11/carvao-app-sub000/config"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/crypto"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/email"
	"github.com/gustavoprado11/carvao-app-sub000/services"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// previewSaltKey, chave do salt de derivação no app_meta.
const previewSaltKey = "preview_salt"

// Services, container das instâncias de service.
type Services struct {
	Auth          services.AuthService
	ReadStates    services.ReadStateService
	Conversations services.ConversationService
	Badges        services.BadgePublisher
	Tracker       services.TrackerService
	Notifications services.NotificationService
}

func initServices(repos *Repositories, hub *ws.Hub, cfg *config.Config, previewKey []byte) *Services {
	authService := services.NewAuthService(cfg.JWT.Secret)
	readStateService := services.NewReadStateService(repos.ReadState)
	conversationService := services.NewConversationService(
		repos.ConversationCache,
		cfg.Backend.APIURL,
		cfg.Backend.ServiceKey,
		cfg.Backend.FetchTimeout,
		previewKey,
	)
	badgeService := services.NewBadgeService(hub, cfg.Backend.APIURL, cfg.Backend.ServiceKey, cfg.Backend.FetchTimeout)
	trackerService := services.NewTrackerService(readStateService, conversationService, badgeService, hub)

	// Resend é opcional: sem chave, o sender fica nil e a notification
	// service vira no-op.
	var sender email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
	} else {
		log.Println("[main] RESEND_API_KEY not set, e-mail alerts disabled")
	}
	notificationService := services.NewNotificationService(sender)
	trackerService.SetNotifier(notificationService)

	return &Services{
		Auth:          authService,
		ReadStates:    readStateService,
		Conversations: conversationService,
		Badges:        badgeService,
		Tracker:       trackerService,
		Notifications: notificationService,
	}
}

// Close desmonta o que as services seguram (caches com goroutine de
// limpeza). Chamado no shutdown.
func (s *Services) Close() {
	s.Conversations.Close()
	s.Notifications.Close()
}

// loadPreviewKey deriva a chave AES dos previews: passphrase do ambiente
// + salt persistido no app_meta (criado na primeira subida). Sem
// passphrase devolve nil e o cache fica em claro.
func loadPreviewKey(cfg *config.Config, repos *Repositories) ([]byte, error) {
	if cfg.Crypto.PreviewPassphrase == "" {
		log.Println("[main] PREVIEW_PASSPHRASE not set, preview cache will be stored in plaintext")
		return nil, nil
	}

	ctx := context.Background()

	salt, err := repos.Meta.Get(ctx, previewSaltKey)
	if errors.Is(err, pkg.ErrNotFound) {
		salt, err = crypto.NewSalt()
		if err != nil {
			return nil, err
		}
		if err := repos.Meta.Set(ctx, previewSaltKey, salt); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return crypto.DeriveKey(cfg.Crypto.PreviewPassphrase, salt)
}
