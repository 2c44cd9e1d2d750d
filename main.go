// Package main, ponto de entrada do daemon de conversas do Carvão App.
//
// O daemon fica entre as UIs (app desktop das carvoarias, portal web das
// siderúrgicas) e o backend gerenciado do marketplace: valida o token do
// backend, mantém por usuário logado o estado de leitura das conversas e
// deriva o badge de não lidas em tempo real.
//
// Papel deste arquivo — o wire-up de dependency injection:
//   1. Config
//   2. SQLite local (migrations embarcadas)
//   3. Chave de cifra dos previews
//   4. Repositories
//   5. WebSocket Hub das UIs
//   6. Services
//   7. Feed do backend + callbacks do Hub
//   8. Handlers e rotas
//   9. CORS e servidor HTTP
//  10. Loop de sincronização periódica
//  11. Graceful shutdown
//
// Nenhuma variável global — tudo nasce aqui e é ligado por construtor.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/gustavoprado11/carvao-app-sub000/config"
	"github.com/gustavoprado11/carvao-app-sub000/database"
	"github.com/gustavoprado11/carvao-app-sub000/feed"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] carvao conversation daemon starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.Path, database.EmbeddedMigrations)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repositories ───
	repos := initRepositories(db.Conn)

	// ─── 4. Chave de cifra dos previews ───
	// Derivada da passphrase + salt persistido no SQLite. Sem passphrase
	// o daemon sobe com os previews em claro no cache local.
	previewKey, err := loadPreviewKey(cfg, repos)
	if err != nil {
		log.Fatalf("[main] failed to derive preview key: %v", err)
	}

	// ─── 5. WebSocket Hub das UIs ───
	// O Hub implementa ws.EventPublisher — as services enxergam só a
	// interface, nunca o Hub concreto.
	hub := ws.NewHub()
	go hub.Run()

	// ─── 6. Services ───
	svcs := initServices(repos, hub, cfg, previewKey)

	// ─── 7. Feed do backend + callbacks do Hub ───
	feedManager := feed.NewManager(cfg.Backend.RealtimeURL, cfg.Backend.ServiceKey, svcs.Tracker)
	svcs.Tracker.SetFeedController(feedManager)
	initCallbacks(hub, svcs)

	// ─── 8. Handlers e rotas ───
	h := initHandlers(svcs, hub)
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs)

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000", // portal dev
			"http://localhost:1420", // app dev (Tauri)
			"tauri://localhost",     // app produção
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	})
	handler := corsHandler.Handler(mux)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 10. Sincronização periódica ───
	// O feed cobre o caminho quente; este loop refaz o snapshot inteiro
	// de tempos em tempos para apanhar evento perdido em reconexão.
	syncCtx, syncCancel := context.WithCancel(context.Background())
	go runSnapshotSync(syncCtx, svcs, cfg.Sync.SnapshotInterval)

	// ─── 11. Graceful shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	syncCancel()
	feedManager.Shutdown()
	hub.Shutdown()
	svcs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}

// runSnapshotSync dispara o refresh completo de todas as sessões vivas
// na cadência configurada.
func runSnapshotSync(ctx context.Context, svcs *Services, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svcs.Tracker.RefreshAllSnapshots()
		}
	}
}
