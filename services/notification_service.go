package services

import (
	"context"
	"log"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/pkg/cache"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/email"
)

const (
	// notifySuppressTTL, janela de silêncio por (usuário, conversa).
	// Dez mensagens seguidas na mesma conversa viram um e-mail só.
	notifySuppressTTL = 30 * time.Minute

	// notifySendTimeout, prazo do envio via Resend.
	notifySendTimeout = 10 * time.Second

	// previewMaxLen, corte do preview no e-mail.
	previewMaxLen = 120
)

// NotificationService, aviso por e-mail para usuário sem nenhuma UI
// conectada. Melhor esforço: falha de envio é logada e esquecida.
type NotificationService interface {
	Notifier
	Close()
}

// suppressKey identifica a janela de supressão.
type suppressKey struct {
	userKey        string
	conversationID string
}

type notificationService struct {
	sender     email.EmailSender
	suppressed *cache.TTLCache[suppressKey, struct{}]
}

// NewNotificationService, constructor. sender nil desliga o serviço
// (instalação sem RESEND_API_KEY).
func NewNotificationService(sender email.EmailSender) NotificationService {
	return &notificationService{
		sender:     sender,
		suppressed: cache.New[suppressKey, struct{}](notifySuppressTTL, 5*time.Minute),
	}
}

func (s *notificationService) NotifyOffline(userKey, conversationID, senderEmail, preview string) {
	if s.sender == nil {
		return
	}

	key := suppressKey{userKey: userKey, conversationID: conversationID}
	if _, hit := s.suppressed.Get(key); hit {
		return
	}
	// Marca antes de enviar: rajada de eventos não dispara rajada de
	// e-mails nem quando o primeiro envio demora.
	s.suppressed.Set(key, struct{}{})

	if runes := []rune(preview); len(runes) > previewMaxLen {
		preview = string(runes[:previewMaxLen]) + "…"
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifySendTimeout)
	defer cancel()

	if err := s.sender.SendNewMessageAlert(ctx, userKey, senderEmail, preview); err != nil {
		log.Printf("[notify] failed to send alert to %s: %v", userKey, err)
		return
	}

	log.Printf("[notify] alert sent to %s for conversation %s", userKey, conversationID)
}

func (s *notificationService) Close() {
	s.suppressed.Close()
}
