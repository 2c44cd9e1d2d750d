package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

const (
	// dialTimeout, prazo do handshake com o backend.
	dialTimeout = 10 * time.Second

	// pingInterval e pongWait, keepalive da conexão. O backend responde
	// ping com pong; dois pings sem resposta derrubam a conexão.
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second

	// Backoff da reconexão: dobra a cada falha até o teto.
	reconnectBase = time.Second
	reconnectMax  = time.Minute
)

// messageWire, DTO do evento de mensagem no stream. created_at chega como
// string RFC3339 e é validado aqui na borda.
type messageWire struct {
	ConversationID string `json:"conversation_id"`
	SenderEmail    string `json:"sender_email"`
	BodyPreview    string `json:"body_preview"`
	CreatedAt      string `json:"created_at"`
}

// subscription, o loop de conexão de um usuário. Vive da criação até o
// cancel do contexto; reconecta sozinho no meio.
type subscription struct {
	realtimeURL string
	serviceKey  string
	userKey     string
	sink        Sink

	ctx    context.Context
	cancel context.CancelFunc
}

func newSubscription(realtimeURL, serviceKey, userKey string, sink Sink) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{
		realtimeURL: realtimeURL,
		serviceKey:  serviceKey,
		userKey:     userKey,
		sink:        sink,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *subscription) stop() {
	s.cancel()
}

// run conecta, consome e reconecta até o stop. Cada volta do loop é uma
// vida da conexão; o backoff zera depois de uma conexão que durou.
func (s *subscription) run() {
	backoff := reconnectBase

	for {
		if s.ctx.Err() != nil {
			return
		}

		connectedAt := time.Now()
		err := s.consume()
		if s.ctx.Err() != nil {
			return
		}

		if time.Since(connectedAt) > reconnectMax {
			backoff = reconnectBase
		}

		log.Printf("[feed] connection lost for user %s (%v), reconnecting in %s", s.userKey, err, backoff)

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// consume abre a conexão e lê eventos até ela cair.
func (s *subscription) consume() error {
	endpoint := fmt.Sprintf("%s/realtime/messages?user=%s", s.realtimeURL, url.QueryEscape(s.userKey))

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	header.Set("apikey", s.serviceKey)

	conn, _, err := dialer.DialContext(s.ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	log.Printf("[feed] connected for user %s", s.userKey)

	// Derruba a conexão quando o stop chegar no meio de um ReadMessage.
	// done impede a goroutine de sobrar depois de uma queda normal.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	go s.pingLoop(conn)

	for {
		_, rawMessage, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.dispatch(rawMessage)
	}
}

// pingLoop mantém a conexão viva; termina quando ela cai.
func (s *subscription) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(dialTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// dispatch valida um evento cru e entrega ao sink. Evento malformado é
// logado e descartado, nunca derruba a conexão.
func (s *subscription) dispatch(rawMessage []byte) {
	var wire messageWire
	if err := json.Unmarshal(rawMessage, &wire); err != nil {
		log.Printf("[feed] invalid event for user %s: %v", s.userKey, err)
		return
	}

	if wire.ConversationID == "" {
		return
	}

	createdAt, err := time.Parse(time.RFC3339, wire.CreatedAt)
	if err != nil {
		log.Printf("[feed] skipping event for conversation %s: bad created_at %q", wire.ConversationID, wire.CreatedAt)
		return
	}

	s.sink.RecordActivity(s.userKey, models.MessageEvent{
		ConversationID: wire.ConversationID,
		SenderEmail:    wire.SenderEmail,
		BodyPreview:    wire.BodyPreview,
		CreatedAt:      createdAt,
	})
}
