// Package email, camada de abstração para envio de e-mails.
//
// O EmailSender esconde o provedor concreto (hoje, Resend) atrás de uma
// interface — os services dependem da interface, o main.go decide a
// implementação. Trocar de provedor é escrever outro constructor.
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender, interface de envio de e-mail consumida pelos services.
type EmailSender interface {
	// SendNewMessageAlert avisa um usuário desconectado que chegou mensagem
	// nova em uma conversa. otherParty é o e-mail da outra ponta
	// (carvoaria ou siderúrgica), preview é o trecho da mensagem.
	SendNewMessageAlert(ctx context.Context, toEmail, otherParty, preview string) error
}

// resendSender, implementação do EmailSender via API do Resend.
type resendSender struct {
	client    *resend.Client
	fromEmail string // remetente (ex: notificacoes@carvaoapp.com.br)
	appURL    string // URL pública do portal (link "abrir conversa")
}

// NewResendSender cria um EmailSender usando a API do Resend.
//
// apiKey: chave do dashboard do Resend (formato re_xxxxxxxx).
// fromEmail: remetente — precisa estar sob domínio verificado no Resend.
// appURL: URL pública do portal web, usada no link do e-mail.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// SendNewMessageAlert envia o aviso de mensagem nova.
//
// O e-mail é deliberadamente curto: quem recebe deve abrir o portal para
// ler a conversa inteira (o preview cabe em uma linha). O chamador é
// responsável por suprimir repetições — este método envia sempre.
func (s *resendSender) SendNewMessageAlert(ctx context.Context, toEmail, otherParty, preview string) error {
	inboxLink := fmt.Sprintf("%s/mensagens", s.appURL)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#1c1917;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#1c1917;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#292524;border-radius:8px;padding:40px;">
          <tr>
            <td>
              <h1 style="color:#fafaf9;font-size:24px;margin:0 0 8px 0;">Carvão App</h1>
              <h2 style="color:#fafaf9;font-size:18px;margin:0 0 24px 0;">Nova mensagem de %s</h2>
              <p style="color:#a8a29e;font-size:15px;line-height:1.6;margin:0 0 24px 0;">%s</p>
              <table cellpadding="0" cellspacing="0" style="margin:0 0 24px 0;">
                <tr>
                  <td style="background-color:#ea580c;border-radius:6px;padding:12px 32px;">
                    <a href="%s" style="color:#ffffff;text-decoration:none;font-size:15px;font-weight:600;">
                      Abrir conversa
                    </a>
                  </td>
                </tr>
              </table>
              <p style="color:#78716c;font-size:13px;line-height:1.6;margin:0;">
                Você recebeu este aviso porque estava desconectado quando a mensagem chegou.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`, otherParty, preview, inboxLink)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Carvão App <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Nova mensagem de %s — Carvão App", otherParty),
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send new message alert: %w", err)
	}

	return nil
}
