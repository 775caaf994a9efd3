// ABOUTME: Entry point for the praxy-ingest document pipeline
// ABOUTME: Seals document chunks and upserts them into the Qdrant collection

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/praxyhealth/praxy-gateway/internal/config"
	"github.com/praxyhealth/praxy-gateway/internal/indexer"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: praxy-ingest <documents.json>")
		fmt.Println()
		fmt.Println("The input file is a JSON array of documents:")
		fmt.Println(`  [{"id": "...", "title": "...", "body": "...", "excerpt": "..."}]`)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the path to the gateway config file.
// Priority: PRAXY_CONFIG env var > XDG_CONFIG_HOME/praxy/gateway.yaml > ~/.config/praxy/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PRAXY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "praxy", "gateway.yaml")
}

type documentFile struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Excerpt string `json:"excerpt"`
}

func loadDocuments(path string) ([]indexer.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries []documentFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	docs := make([]indexer.Document, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.Body == "" {
			return nil, fmt.Errorf("document %d: id and body are required", i)
		}
		docs = append(docs, indexer.Document{
			ID:      e.ID,
			Title:   e.Title,
			Body:    e.Body,
			Excerpt: e.Excerpt,
		})
	}
	return docs, nil
}

func run(ctx context.Context, docsPath string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Indexer.SymKeyHex == "" {
		return fmt.Errorf("indexer.symkey_hex is required (64 hex chars)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	docs, err := loadDocuments(docsPath)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents in %s", docsPath)
	}

	cipher, err := indexer.NewCipherFromHex(cfg.Indexer.SymKeyHex)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}

	ix, err := indexer.New(cfg.Indexer.QdrantHost, cfg.Indexer.QdrantPort, cfg.Indexer.Collection, cipher, indexer.StubEmbedder{}, logger)
	if err != nil {
		return err
	}

	if err := ix.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := ix.Ingest(ctx, docs); err != nil {
		return err
	}

	fmt.Printf("Ingested %d documents into %q\n", len(docs), cfg.Indexer.Collection)
	return nil
}
