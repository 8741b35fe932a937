package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Ingestor turns Markdown source files into embedding store documents.
type Ingestor struct {
	embedder Embedder
	chunker  *Chunker
}

func NewIngestor(embedder Embedder, chunker *Chunker) *Ingestor {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Ingestor{embedder: embedder, chunker: chunker}
}

// IngestDir embeds every *.md file under srcDir and writes one store
// document per file into storeDir. Files that fail are logged and skipped.
func (in *Ingestor) IngestDir(ctx context.Context, srcDir, storeDir string) (int, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read source directory: %w", err)
	}

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		src := filepath.Join(srcDir, entry.Name())
		doc, err := in.IngestFile(ctx, src)
		if err != nil {
			slog.Warn("skipping document", "file", src, "error", err)
			continue
		}

		out := filepath.Join(storeDir, strings.TrimSuffix(entry.Name(), ".md")+".json")
		if err := doc.Save(out); err != nil {
			return ingested, err
		}
		ingested++
		slog.Info("ingested document", "file", src, "chunks", doc.TotalChunks)
	}
	return ingested, nil
}

// IngestFile chunks one Markdown file and embeds every chunk.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*StoreDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	name := filepath.Base(path)
	chunks := in.chunker.SplitWithLines(string(data))

	doc := &StoreDocument{
		FileName:    name,
		TotalChunks: len(chunks),
		ChunkSize:   in.chunker.ChunkSize,
		Embeddings:  make([]EmbeddingRecord, 0, len(chunks)),
	}

	for _, chunk := range chunks {
		vec, err := in.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
		}
		doc.Embeddings = append(doc.Embeddings, EmbeddingRecord{
			Text:       chunk.Text,
			Embedding:  vec,
			Index:      chunk.Index,
			StartLine:  chunk.StartLine,
			EndLine:    chunk.EndLine,
			SourceFile: name,
		})
	}
	return doc, nil
}
