package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Fixed answers returned in place of search results. Search never returns
// an empty string.
const (
	NoPoliciesFound = "No specific policies found."
	NotInitialized  = "I currently don't have access to the detailed policy manuals."
	Unavailable     = "Information currently unavailable."
)

// DefaultTopK is the number of neighbours requested per query.
const DefaultTopK = 3

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one nearest neighbour. Text is empty when the snippet carries no
// text metadata.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// Index returns the topK nearest snippets to vector.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Searcher answers policy questions from the knowledge base.
type Searcher struct {
	embedder Embedder
	index    Index
	topK     int
	logger   *zap.Logger
}

// NewSearcher returns a Searcher. A nil embedder or index leaves it
// uninitialised and every search answers NotInitialized.
func NewSearcher(embedder Embedder, index Index, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
		logger:   logger,
	}
}

// Ready reports whether both collaborators are configured.
func (s *Searcher) Ready() bool {
	return s != nil && s.embedder != nil && s.index != nil
}

// Search embeds query, fetches the nearest snippets and joins their text
// with newlines.
func (s *Searcher) Search(ctx context.Context, query string) (result string) {
	if !s.Ready() {
		return NotInitialized
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("knowledge search panicked", zap.Any("panic", r))
			result = Unavailable
		}
	}()

	text, err := s.search(ctx, query)
	if err != nil {
		s.logger.Error("knowledge search failed", zap.String("query", query), zap.Error(err))
		return Unavailable
	}
	return text
}

func (s *Searcher) search(ctx context.Context, query string) (string, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, s.topK)
	if err != nil {
		return "", fmt.Errorf("query index: %w", err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		texts = append(texts, m.Text)
	}
	if len(texts) == 0 {
		return NoPoliciesFound, nil
	}

	s.logger.Debug("knowledge search", zap.String("query", query), zap.Int("matches", len(texts)))
	return strings.Join(texts, "\n"), nil
}
