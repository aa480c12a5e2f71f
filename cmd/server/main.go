package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/docgraph"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":5001", "Listen address")
	staticDir := flag.String("static", "", "Directory of static frontend files served at /")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := docgraph.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("DOCGRAPH_API_KEY")
	corsOrigins := os.Getenv("DOCGRAPH_CORS_ORIGINS")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := docgraph.New(startCtx, cfg)
	cancelStart()
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	mux := newHandler(engine).routes()
	if *staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(*staticDir)))
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      chain(mux, apiKey, corsOrigins),
		ReadTimeout:  5 * time.Minute, // large uploads
		WriteTimeout: 0,               // extraction of a long document can take minutes
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "graph_backend", cfg.Graph.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
