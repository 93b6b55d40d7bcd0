// Command unimemd serves the memory API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/unimem/unimem/config"
	"github.com/unimem/unimem/memory"
	"github.com/unimem/unimem/memory/embedder/cached"
	"github.com/unimem/unimem/memory/embedder/openai"
	"github.com/unimem/unimem/memory/extract"
	"github.com/unimem/unimem/memory/local"
	"github.com/unimem/unimem/memory/store/chromem"
	"github.com/unimem/unimem/server"
)

func main() {
	if err := mainImpl(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "unimemd: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	host := flag.String("host", "", "Listen host (overrides API_HOST)")
	port := flag.Int("port", 0, "Listen port (overrides API_PORT)")
	dataDir := flag.String("data-dir", "", "Data directory (overrides MEMORY_DATA_DIR)")
	useLocal := flag.Bool("local", false, "Force the local JSON-file store")
	flag.Parse()

	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *useLocal {
		cfg.UseLocal = true
	}

	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	client, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close memory client", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	hub := server.NewHub()
	httpServer := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     server.NewRouter(server.NewHandler(client, hub), hub),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Addr(), "backend", client.Backend())
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.Info("Server stopped")
	}
	return nil
}

// buildClient assembles the backend chain: vector store when an OpenAI key
// is present, local JSON file otherwise. Any failure preparing the vector
// path logs a warning and falls back rather than aborting startup.
func buildClient(cfg *config.Config, logger *slog.Logger) (*memory.Client, error) {
	fallback, err := local.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	opts := []memory.Option{
		memory.WithDefaultUser(cfg.UserID),
		memory.WithLogger(logger),
	}
	if cfg.ExtractFacts {
		anthropicClient := anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
		opts = append(opts, memory.WithExtractor(extract.New(anthropicClient)))
	}

	provider := buildProvider(cfg)
	return memory.NewClient(provider, fallback, opts...), nil
}

// buildProvider returns nil when the configuration selects the local store.
func buildProvider(cfg *config.Config) memory.Provider {
	if cfg.UseLocal {
		slog.Info("Using local store", "reason", "forced by configuration")
		return nil
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Info("Using local store", "reason", "no OPENAI_API_KEY")
		return nil
	}

	var embedderOpts []openai.Option
	if cfg.OpenAIBaseURL != "" {
		embedderOpts = append(embedderOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.EmbeddingModel != "" {
		embedderOpts = append(embedderOpts, openai.WithModel(cfg.EmbeddingModel))
	}
	embedder, err := openai.New(cfg.OpenAIAPIKey, embedderOpts...)
	if err != nil {
		slog.Warn("Falling back to local store", "err", err)
		return nil
	}

	wrapped, err := cached.New(embedder, 0)
	if err != nil {
		slog.Warn("Falling back to local store", "err", err)
		return nil
	}

	var providerOpts []chromem.Option
	if cfg.Collection != "" {
		providerOpts = append(providerOpts, chromem.WithCollectionBase(cfg.Collection))
	}
	provider, err := chromem.New(wrapped, providerOpts...)
	if err != nil {
		slog.Warn("Falling back to local store", "err", err)
		return nil
	}
	return provider
}
