package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EmbeddingRecord is one chunk of a source document together with its
// embedding vector. Records are created once at ingestion time and never
// mutated.
type EmbeddingRecord struct {
	Text       string    `json:"text"`
	Embedding  []float64 `json:"embedding"`
	Index      int       `json:"index"`
	StartLine  int       `json:"startLine"`
	EndLine    int       `json:"endLine"`
	SourceFile string    `json:"sourceFile"`
}

// StoreDocument is the on-disk embedding store format: one JSON document per
// ingested source file.
type StoreDocument struct {
	FileName    string            `json:"fileName"`
	TotalChunks int               `json:"totalChunks"`
	ChunkSize   int               `json:"chunkSize"`
	Embeddings  []EmbeddingRecord `json:"embeddings"`
}

// LoadStore reads a single embedding store document.
func LoadStore(path string) (*StoreDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding store: %w", err)
	}

	var doc StoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse embedding store %s: %w", path, err)
	}
	return &doc, nil
}

// LoadStoreDir loads every *.json embedding store document under dir.
// Corrupted files are skipped so one bad document does not take the whole
// index down.
func LoadStoreDir(dir string) ([]*StoreDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding store directory: %w", err)
	}

	var docs []*StoreDocument
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := LoadStore(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Save writes the document as indented JSON.
func (d *StoreDocument) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal embedding store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write embedding store: %w", err)
	}
	return nil
}
