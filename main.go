package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sova/cli"
	"sova/config"
	"sova/dialog"
	"sova/mcp"
	"sova/provider"
	"sova/rag"
	"sova/storage"
	"sova/telegram"
)

const Version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "path to the config file")
	cliMode := flag.Bool("cli", false, "run the interactive terminal shell instead of the Telegram bot")
	ingestDir := flag.String("ingest", "", "ingest Markdown documents from this directory into the embedding store and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(*configPath, *cliMode, *ingestDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, cliMode bool, ingestDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		return err
	}

	prov, err := provider.NewProvider(provider.Config{
		Type:           provider.MapProviderIDToType(cfg.Provider.ID),
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		EmbeddingModel: cfg.Provider.EmbeddingModel,
		APIKey:         providerAPIKey(cfg.Provider.ID, creds),
		AuthKey:        creds.GigaChatAuthKey,
		Scope:          cfg.Provider.Scope,
	})
	if err != nil {
		return err
	}

	dataDir := cfg.DataDir()
	storeDir := filepath.Join(dataDir, cfg.Retrieval.StoreDir)

	if ingestDir != "" {
		return runIngest(ctx, cfg, prov, ingestDir, storeDir)
	}

	conversations, err := storage.NewConversationStorage(dataDir)
	if err != nil {
		return err
	}
	settings, err := storage.NewSettingsStorage(dataDir)
	if err != nil {
		return err
	}

	engine, err := buildRetriever(prov, storeDir)
	if err != nil {
		return err
	}
	// A nil *rag.Engine must stay a nil interface for the orchestrator's
	// nil check to work.
	var retriever dialog.Retriever
	if engine != nil {
		retriever = engine
	}

	mcpClient, serverConfigs, err := buildMCPClient(ctx, cfg, dataDir)
	if err != nil {
		return err
	}
	defer mcpClient.Shutdown()
	slog.Info("mcp servers started", "configured", len(serverConfigs), "tools", len(mcpClient.ListTools()))

	orch := dialog.NewOrchestrator(prov, mcpClient, retriever, conversations)

	if cfg.HealthAddr != "" {
		go serveHealth(cfg.HealthAddr)
	}

	if cliMode {
		shell := cli.NewShell(orch, prov, conversations, settings, cfg.DefaultSystemPrompt, os.Stdin, os.Stdout)
		return shell.Run(ctx)
	}

	if creds.TelegramToken == "" {
		return fmt.Errorf("missing Telegram token (set telegram.token, SOVA_TELEGRAM_TOKEN, or the credential store)")
	}
	bot := telegram.NewBot(telegram.NewAPI(creds.TelegramToken, nil), orch, prov,
		conversations, settings, cfg.DefaultSystemPrompt, cfg.Telegram.AllowedChatIDs)
	return bot.Run(ctx)
}

// providerAPIKey picks the credential matching the configured provider.
func providerAPIKey(providerID string, creds *config.Credentials) string {
	switch provider.MapProviderIDToType(providerID) {
	case provider.ProviderTypeOpenAI:
		return creds.OpenAIAPIKey
	case provider.ProviderTypeAnthropic:
		return creds.AnthropicAPIKey
	}
	return ""
}

// buildRetriever loads the embedding store. A missing or empty store
// disables retrieval rather than failing startup.
func buildRetriever(prov rag.Embedder, storeDir string) (*rag.Engine, error) {
	docs, err := rag.LoadStoreDir(storeDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no embedding store, retrieval disabled", "dir", storeDir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load embedding store: %w", err)
	}
	if len(docs) == 0 {
		slog.Info("embedding store is empty, retrieval disabled", "dir", storeDir)
		return nil, nil
	}
	slog.Info("embedding store loaded", "documents", len(docs))
	return rag.NewEngine(prov, docs), nil
}

// buildMCPClient merges config-declared servers with the sqlite registry of
// installed ones and starts everything. Registry entries win on id conflicts.
func buildMCPClient(ctx context.Context, cfg *config.Config, dataDir string) (*mcp.Client, []mcp.ServerConfig, error) {
	byID := make(map[string]mcp.ServerConfig)
	var order []string
	for _, s := range cfg.MCPServers {
		byID[s.ID] = mcp.ServerConfig{ID: s.ID, Command: s.Command, Args: s.Args, Env: s.Env}
		order = append(order, s.ID)
	}

	registry, err := storage.NewServerRegistry(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open server registry: %w", err)
	}
	defer registry.Close()

	registered, err := registry.List()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list registered servers: %w", err)
	}
	for _, s := range registered {
		if !s.Enabled {
			continue
		}
		if _, exists := byID[s.ID]; !exists {
			order = append(order, s.ID)
		}
		byID[s.ID] = mcp.ServerConfig{ID: s.ID, Command: s.Command, Args: s.Args, Env: s.Env}
	}

	configs := make([]mcp.ServerConfig, 0, len(order))
	for _, id := range order {
		configs = append(configs, byID[id])
	}

	client := mcp.NewClient()
	client.StartServers(ctx, configs)
	return client, configs, nil
}

func runIngest(ctx context.Context, cfg *config.Config, prov rag.Embedder, srcDir, storeDir string) error {
	chunkSize := cfg.Retrieval.ChunkSize
	if chunkSize <= 0 {
		chunkSize = rag.DefaultChunkSize
	}
	overlap := cfg.Retrieval.ChunkOverlap
	if overlap < 0 {
		overlap = rag.DefaultChunkOverlap
	}

	ingestor := rag.NewIngestor(prov, rag.NewChunker(chunkSize, overlap))
	count, err := ingestor.IngestDir(ctx, srcDir, storeDir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	slog.Info("ingestion complete", "files", count, "store", storeDir)
	return nil
}

func serveHealth(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	slog.Info("health endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Warn("health endpoint stopped", "error", err)
	}
}
