package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/smallcorp/deskchat/internal/config"
	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/server"
)

type DeskChatApp struct {
	log            *log.Logger
	db             database.DeskChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
}

func NewDeskChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.DeskChatRepository, cfg *config.Config) *DeskChatApp {
	s := &DeskChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRooms))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRooms))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *DeskChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *DeskChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
