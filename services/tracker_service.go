package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// loginRefreshTimeout, prazo do fetch inicial de conversas no login.
const loginRefreshTimeout = 15 * time.Second

// FeedController liga e desliga a assinatura do feed em tempo real de um
// usuário. Implementado por feed.Manager; entra por setter para não criar
// ciclo de import.
type FeedController interface {
	Start(userKey string)
	Stop(userKey string)
}

// Notifier avisa um usuário sem nenhuma UI conectada que chegou mensagem.
// Implementado por NotificationService.
type Notifier interface {
	NotifyOffline(userKey, conversationID, senderEmail, preview string)
}

// TrackerService, o coração do daemon: mantém por usuário logado o par
// (instante da última atividade, instante da última leitura) de cada
// conversa e deriva o contador de não lidas a cada mutação.
//
// Regra de não lida: atividade estritamente maior que leitura. Igualdade
// conta como lida; conversa sem marca de leitura usa zero time, então
// qualquer atividade a torna não lida.
type TrackerService interface {
	// Login cria a sessão do usuário: carrega as marcas de leitura do
	// SQLite, semeia o snapshot com o cache local e dispara o fetch do
	// backend e a assinatura do feed.
	Login(ctx context.Context, userKey, role string)
	// Logout desmonta a sessão e zera o badge nas UIs ainda conectadas.
	// Sem sessão viva devolve pkg.ErrNoSession.
	Logout(userKey string) error

	// RecordFullSnapshot substitui o snapshot de atividade inteiro
	// (resultado de um fetch completo) e recalcula.
	RecordFullSnapshot(userKey string, snapshot map[string]time.Time)
	// RecordActivity aplica um evento do feed: avança a atividade da
	// conversa (nunca retrocede) e recalcula. Mensagem do próprio usuário
	// ou em conversa aberta em primeiro plano já nasce lida.
	RecordActivity(userKey string, event models.MessageEvent)

	// MarkRead marca a conversa como lida até readAt (zero = instante da
	// última atividade conhecida). Idempotente; nunca retrocede a marca.
	MarkRead(userKey, conversationID string, readAt time.Time)
	// SetActiveConversation registra a conversa aberta na UI. Abrir uma
	// conversa com atividade conhecida a marca como lida na hora; id
	// vazio limpa o foco.
	SetActiveConversation(userKey, conversationID string)
	// SetAppState alterna primeiro/segundo plano. A volta ao primeiro
	// plano relê as marcas persistidas e republica o estado.
	SetAppState(userKey, state string)

	// UnreadCount devolve o contador atual; zero sem sessão.
	UnreadCount(userKey string) int
	// UnreadState devolve contador + conversas não lidas para o evento
	// ready do WebSocket.
	UnreadState(userKey string) (int, []ws.UnreadItem)
	// FullState devolve o estado por conversa para a API HTTP.
	FullState(userKey string) models.UnreadState

	// RefreshAllSnapshots refaz o fetch de conversas de todas as sessões
	// vivas. Chamado pelo loop periódico de sincronização: o feed cobre o
	// caminho quente, o fetch periódico cobre evento perdido.
	RefreshAllSnapshots()

	// SetFeedController e SetNotifier fecham o ciclo de wiring no boot.
	SetFeedController(fc FeedController)
	SetNotifier(n Notifier)
}

// session, estado em memória de um usuário logado. Todo acesso passa pelo
// mutex; o recálculo roda dentro da seção crítica para o contador nunca
// refletir um estado intermediário.
type session struct {
	role               string
	reads              models.ReadStateMap
	snapshot           map[string]time.Time
	activeConversation string
	foreground         bool
	unread             int
}

type trackerService struct {
	sessions      *sessionRegistry
	readStates    ReadStateService
	conversations ConversationService
	badges        BadgePublisher
	hub           ws.EventPublisher
	feed          FeedController
	notifier      Notifier
}

// NewTrackerService, constructor. FeedController e Notifier entram depois,
// pelos setters, porque dependem deste serviço.
func NewTrackerService(readStates ReadStateService, conversations ConversationService, badges BadgePublisher, hub ws.EventPublisher) TrackerService {
	return &trackerService{
		sessions:      newSessionRegistry(),
		readStates:    readStates,
		conversations: conversations,
		badges:        badges,
		hub:           hub,
	}
}

func (s *trackerService) SetFeedController(fc FeedController) { s.feed = fc }
func (s *trackerService) SetNotifier(n Notifier)              { s.notifier = n }

// ─────────────────────────── Ciclo de vida ───────────────────────────

func (s *trackerService) Login(ctx context.Context, userKey, role string) {
	if userKey == "" {
		return
	}

	sess, created := s.sessions.getOrCreate(userKey)
	sess.mu.Lock()
	if !created {
		// Login repetido só atualiza o papel; a sessão viva fica como está.
		sess.state.role = role
		sess.mu.Unlock()
		return
	}
	sess.state.role = role
	sess.state.foreground = true

	// Marcas de leitura persistidas. Falha vira mapa vazio lá dentro:
	// melhor mostrar não lidas demais do que esconder mensagem.
	sess.state.reads = s.readStates.Load(ctx, userKey)

	// Semeia o snapshot com o cache local para o badge aparecer antes do
	// backend responder.
	if cached, err := s.conversations.LoadCached(ctx, userKey); err == nil {
		sess.state.snapshot = BuildSnapshot(cached)
	} else {
		sess.state.snapshot = make(map[string]time.Time)
		log.Printf("[tracker] failed to seed snapshot for user %s: %v", userKey, err)
	}

	s.recomputeLocked(userKey, sess.state)
	sess.mu.Unlock()

	log.Printf("[tracker] session opened for user %s (%s)", userKey, role)

	// Fetch fresco em background; o resultado entra por RecordFullSnapshot.
	go s.refreshSnapshot(userKey, role)

	if s.feed != nil {
		s.feed.Start(userKey)
	}
}

func (s *trackerService) Logout(userKey string) error {
	if !s.sessions.delete(userKey) {
		return fmt.Errorf("%w: user %s", pkg.ErrNoSession, userKey)
	}

	if s.feed != nil {
		s.feed.Stop(userKey)
	}
	s.conversations.Invalidate(userKey)

	// Sem sessão não existe "não lida": badge zerado nas UIs que ficarem.
	s.badges.Publish(userKey, 0)

	log.Printf("[tracker] session closed for user %s", userKey)
	return nil
}

// refreshSnapshot busca a lista completa no backend e injeta o snapshot.
func (s *trackerService) refreshSnapshot(userKey, role string) {
	ctx, cancel := context.WithTimeout(context.Background(), loginRefreshTimeout)
	defer cancel()

	convs, err := s.conversations.Refresh(ctx, userKey, role)
	if err != nil {
		log.Printf("[tracker] snapshot refresh failed for user %s: %v", userKey, err)
		return
	}
	s.RecordFullSnapshot(userKey, BuildSnapshot(convs))
}

func (s *trackerService) RefreshAllSnapshots() {
	for _, userKey := range s.sessions.keys() {
		sess, ok := s.sessions.get(userKey)
		if !ok {
			continue
		}
		sess.mu.Lock()
		role := sess.state.role
		sess.mu.Unlock()

		s.refreshSnapshot(userKey, role)
	}
}

// ─────────────────────────── Reconciliação ───────────────────────────

func (s *trackerService) RecordFullSnapshot(userKey string, snapshot map[string]time.Time) {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if snapshot == nil {
		snapshot = make(map[string]time.Time)
	}
	sess.state.snapshot = snapshot

	// Conversa em foco continua lida mesmo com atividade nova no snapshot.
	s.absorbActiveLocked(sess.state)
	s.recomputeLocked(userKey, sess.state)
}

func (s *trackerService) RecordActivity(userKey string, event models.MessageEvent) {
	if event.ConversationID == "" || event.CreatedAt.IsZero() {
		return
	}

	sess, ok := s.sessions.get(userKey)
	if !ok {
		return
	}

	sess.mu.Lock()

	// Atividade nunca retrocede: evento atrasado ou duplicado é ignorado.
	if stored, exists := sess.state.snapshot[event.ConversationID]; exists && !event.CreatedAt.After(stored) {
		sess.mu.Unlock()
		return
	}
	sess.state.snapshot[event.ConversationID] = event.CreatedAt

	// Mensagem do próprio usuário, ou chegando na conversa aberta em
	// primeiro plano, nasce lida: a atividade conta para o frescor mas
	// a marca de leitura avança junto, no mesmo passo.
	selfSent := NormalizeUserKey(event.SenderEmail) == userKey
	focused := sess.state.foreground && sess.state.activeConversation == event.ConversationID
	if selfSent || focused {
		s.markReadLocked(userKey, sess.state, event.ConversationID, event.CreatedAt)
	}

	s.recomputeLocked(userKey, sess.state)
	hasUI := s.hub.IsUserOnline(userKey)
	sess.mu.Unlock()

	// Repassa o evento para as UIs atualizarem a lista sem refetch.
	s.hub.BroadcastToUser(userKey, ws.Event{
		Op: ws.OpConversationActivity,
		Data: ws.ConversationActivityData{
			ConversationID: event.ConversationID,
			SenderEmail:    event.SenderEmail,
			BodyPreview:    event.BodyPreview,
			CreatedAt:      event.CreatedAt,
		},
	})
	s.conversations.Invalidate(userKey)

	// Ninguém olhando: aviso por e-mail (com supressão por conversa).
	if !hasUI && !selfSent && s.notifier != nil {
		s.notifier.NotifyOffline(userKey, event.ConversationID, event.SenderEmail, event.BodyPreview)
	}
}

// ───────────────────────────── Leitura ─────────────────────────────

func (s *trackerService) MarkRead(userKey, conversationID string, readAt time.Time) {
	if conversationID == "" {
		return
	}

	sess, ok := s.sessions.get(userKey)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if readAt.IsZero() {
		activity, exists := sess.state.snapshot[conversationID]
		if !exists {
			// Conversa desconhecida sem timestamp explícito: nada a marcar.
			return
		}
		readAt = activity
	}

	s.markReadLocked(userKey, sess.state, conversationID, readAt)
	s.recomputeLocked(userKey, sess.state)
}

// markReadLocked avança a marca de leitura em memória e agenda a
// persistência. Chamar com sess.mu preso. A marca nunca retrocede, então
// marcar de novo com timestamp antigo é no-op.
func (s *trackerService) markReadLocked(userKey string, state *session, conversationID string, readAt time.Time) {
	if current, exists := state.reads[conversationID]; exists && !readAt.After(current) {
		return
	}
	state.reads[conversationID] = readAt

	// Persistência fora da seção crítica. O upsert no SQLite também é
	// monotônico, então escritas concorrentes fecham no maior timestamp.
	go s.readStates.Persist(context.Background(), userKey, conversationID, readAt)
}

func (s *trackerService) SetActiveConversation(userKey, conversationID string) {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.state.activeConversation = conversationID
	if conversationID == "" {
		return
	}

	// Abrir a conversa é lê-la: marca até a última atividade conhecida.
	if activity, exists := sess.state.snapshot[conversationID]; exists {
		s.markReadLocked(userKey, sess.state, conversationID, activity)
		s.recomputeLocked(userKey, sess.state)
	}
}

func (s *trackerService) SetAppState(userKey, state string) {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch state {
	case ws.AppStateBackground:
		sess.state.foreground = false

	case ws.AppStateForeground:
		sess.state.foreground = true

		// Outra instância (app no celular, portal no browser) pode ter
		// lido conversas enquanto esta dormia: relê as marcas do SQLite
		// e fica com a maior de cada conversa.
		persisted := s.readStates.Load(context.Background(), userKey)
		for conversationID, readAt := range persisted {
			if current, exists := sess.state.reads[conversationID]; !exists || readAt.After(current) {
				sess.state.reads[conversationID] = readAt
			}
		}

		s.absorbActiveLocked(sess.state)
		s.recomputeLocked(userKey, sess.state)
	}
}

// absorbActiveLocked mantém a conversa em foco lida após recargas de
// snapshot ou de marcas. Chamar com sess.mu preso.
func (s *trackerService) absorbActiveLocked(state *session) {
	if !state.foreground || state.activeConversation == "" {
		return
	}
	if activity, exists := state.snapshot[state.activeConversation]; exists {
		if current, has := state.reads[state.activeConversation]; !has || activity.After(current) {
			state.reads[state.activeConversation] = activity
		}
	}
}

// ───────────────────────────── Consulta ─────────────────────────────

func (s *trackerService) UnreadCount(userKey string) int {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return 0
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.unread
}

func (s *trackerService) UnreadState(userKey string) (int, []ws.UnreadItem) {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return 0, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	items := make([]ws.UnreadItem, 0, sess.state.unread)
	for _, conversationID := range UnreadIDs(sess.state.snapshot, sess.state.reads) {
		items = append(items, ws.UnreadItem{
			ConversationID: conversationID,
			LastActivityAt: sess.state.snapshot[conversationID],
		})
	}
	return sess.state.unread, items
}

func (s *trackerService) FullState(userKey string) models.UnreadState {
	sess, ok := s.sessions.get(userKey)
	if !ok {
		return models.UnreadState{Conversations: []models.UnreadSummary{}}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	summaries := make([]models.UnreadSummary, 0, len(sess.state.snapshot))
	for conversationID, activity := range sess.state.snapshot {
		summaries = append(summaries, models.UnreadSummary{
			ConversationID: conversationID,
			LastActivityAt: activity,
			Unread:         activity.After(sess.state.reads[conversationID]),
		})
	}
	// Mais recente primeiro, como as UIs listam.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
	})

	return models.UnreadState{Count: sess.state.unread, Conversations: summaries}
}

// recomputeLocked rederiva o contador e publica se mudou. Chamar com
// sess.mu preso; a publicação interna do badge é assíncrona e não
// segura o lock.
func (s *trackerService) recomputeLocked(userKey string, state *session) {
	count := CountUnread(state.snapshot, state.reads)
	if count == state.unread {
		return
	}
	state.unread = count
	s.badges.Publish(userKey, count)
}
