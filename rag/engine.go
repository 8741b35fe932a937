// Package rag implements retrieval over Markdown documents: chunking,
// cosine-similarity search across on-disk embedding stores, and formatting
// of retrieved chunks into a citation-friendly prompt block.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Embedder produces an embedding vector for a single text. The active
// provider implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunk is a retrieval result: a stored chunk with its relevance to the
// query. Scores are cosine similarities; with the non-negative embedding
// spaces we target they land in [0,1], 1 meaning identical direction.
type Chunk struct {
	Text       string
	Score      float64
	SourceFile string
	StartLine  int
	EndLine    int
}

// Engine scores every stored chunk against a query embedding with a
// brute-force scan. No index is maintained; stores are small enough that a
// linear pass is the simplest correct thing.
type Engine struct {
	embedder Embedder
	docs     []*StoreDocument
}

func NewEngine(embedder Embedder, docs []*StoreDocument) *Engine {
	return &Engine{embedder: embedder, docs: docs}
}

// DocumentCount returns the number of loaded store documents.
func (e *Engine) DocumentCount() int { return len(e.docs) }

// Search embeds the query, scores all records across all loaded documents,
// and returns at most topK chunks ordered by descending score.
//
// Filtering policy: filter-then-truncate. Chunks below relevanceThreshold
// are dropped first, then the top topK of the remainder are returned. When
// more than topK chunks clear the threshold this returns the topK best ones,
// which is what a prompt budget wants.
func (e *Engine) Search(ctx context.Context, query string, topK int, relevanceThreshold float64) ([]Chunk, error) {
	if topK <= 0 {
		topK = 3
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var matches []Chunk
	for _, doc := range e.docs {
		for _, rec := range doc.Embeddings {
			score := CosineSimilarity(queryVec, rec.Embedding)
			if score < relevanceThreshold {
				continue
			}
			matches = append(matches, Chunk{
				Text:       rec.Text,
				Score:      score,
				SourceFile: rec.SourceFile,
				StartLine:  rec.StartLine,
				EndLine:    rec.EndLine,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// FormatContext renders chunks into a context block for prompt-prepending.
// Each section carries the relevance percentage and the source location so
// the model (and the user-facing source list) can cite it.
func FormatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant documentation excerpts:\n\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[%.0f%% relevant] %s (lines %d-%d)\n%s\n---\n",
			chunk.Score*100, chunk.SourceFile, chunk.StartLine, chunk.EndLine, chunk.Text)
	}
	b.WriteString("\nAnswer using the excerpts above when they are relevant.\n")
	return b.String()
}
