package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/cat-chatroom/internal/config"
	"github.com/zhouzirui/cat-chatroom/internal/handler"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
	"github.com/zhouzirui/cat-chatroom/internal/service/ai"
	"github.com/zhouzirui/cat-chatroom/internal/service/chat"
	"github.com/zhouzirui/cat-chatroom/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cat, err := persona.Load(cfg.Persona.File, cfg.Persona.Name)
	if err != nil {
		log.Fatalf("failed to load persona: %v", err)
	}

	chatService := chat.NewService(cat)
	turns := turn.New(cat, ai.NewCompleter(ctx, cfg.AI), turn.Config{
		Interval:  cfg.Reveal.Interval,
		Cursor:    cfg.Reveal.Cursor,
		Streaming: cfg.AI.StreamResponse,
	})

	router := handler.NewRouter(chatService, turns)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Cat chat room listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
