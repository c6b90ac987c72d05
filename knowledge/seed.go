package knowledge

import (
	"context"
	"fmt"
)

// DefaultPolicies is the dealership policy set loaded by cmd/seed.
var DefaultPolicies = []string{
	"We offer financing rates starting at 2.9% APR for qualified buyers.",
	"The showroom is open Monday to Saturday from 9 AM to 7 PM, and Sunday from 10 AM to 4 PM.",
	"We offer a comprehensive 3-year warranty on all certified pre-owned vehicles.",
	"Service appointments can be cancelled up to 24 hours in advance without a fee.",
	"The Rolls-Royce Phantom features a 6.75-liter V12 engine delivering 563 horsepower.",
	"Our trade-in policy guarantees a fair market value assessment valid for 7 days.",
}

// DocumentEmbedder embeds snippets for storage.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SnippetWriter stores embedded snippets.
type SnippetWriter interface {
	Upsert(ctx context.Context, s Snippet) error
}

// Seed embeds texts and writes them as vec_0, vec_1, ... It returns the
// number of snippets written.
func Seed(ctx context.Context, embedder DocumentEmbedder, writer SnippetWriter, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed policies: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embed policies: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for i, text := range texts {
		s := Snippet{
			ID:        fmt.Sprintf("vec_%d", i),
			Text:      text,
			Embedding: vectors[i],
		}
		if err := writer.Upsert(ctx, s); err != nil {
			return i, err
		}
	}
	return len(texts), nil
}
