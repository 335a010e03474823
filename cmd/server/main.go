package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/scrawlhq/scrawl/internal/auth"
	"github.com/scrawlhq/scrawl/internal/server"
	"github.com/scrawlhq/scrawl/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewMongo(ctx, store.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	if err != nil {
		log.Fatalf("Durable store error: %v", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	srv := server.New(cfg, st, tokens)
	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.Hub().Run()
		return nil
	})

	g.Go(func() error {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
		return srv.Hub().Shutdown(cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
