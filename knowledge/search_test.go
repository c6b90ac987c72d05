package knowledge

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	err   error
	panic bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.panic {
		panic("embedding model crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeIndex struct {
	matches []Match
	err     error
	gotTopK int
	stored  []Snippet
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, s Snippet) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, s)
	return nil
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	errIndex := errors.New("index down")

	cases := []struct {
		name     string
		embedder Embedder
		index    *fakeIndex
		want     string
	}{
		{
			name:     "joins texts in order",
			embedder: &fakeEmbedder{},
			index: &fakeIndex{matches: []Match{
				{ID: "vec_3", Text: DefaultPolicies[3]},
				{ID: "vec_2", Text: DefaultPolicies[2]},
			}},
			want: DefaultPolicies[3] + "\n" + DefaultPolicies[2],
		},
		{
			name:     "drops matches without text",
			embedder: &fakeEmbedder{},
			index: &fakeIndex{matches: []Match{
				{ID: "vec_0"},
				{ID: "vec_1", Text: DefaultPolicies[1]},
				{ID: "vec_9", Text: "  "},
			}},
			want: DefaultPolicies[1],
		},
		{
			name:     "zero matches",
			embedder: &fakeEmbedder{},
			index:    &fakeIndex{},
			want:     NoPoliciesFound,
		},
		{
			name:     "only textless matches",
			embedder: &fakeEmbedder{},
			index:    &fakeIndex{matches: []Match{{ID: "vec_0"}}},
			want:     NoPoliciesFound,
		},
		{
			name:     "embedder error",
			embedder: &fakeEmbedder{err: errors.New("quota")},
			index:    &fakeIndex{},
			want:     Unavailable,
		},
		{
			name:     "index error",
			embedder: &fakeEmbedder{},
			index:    &fakeIndex{err: errIndex},
			want:     Unavailable,
		},
		{
			name:     "panic is contained",
			embedder: &fakeEmbedder{panic: true},
			index:    &fakeIndex{},
			want:     Unavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSearcher(tc.embedder, tc.index, nil)
			got := s.Search(ctx, "cancellation policy")
			if got != tc.want {
				t.Fatalf("Search = %q, want %q", got, tc.want)
			}
			if got == "" {
				t.Fatalf("Search must never return an empty string")
			}
		})
	}
}

func TestSearchRequestsTopThree(t *testing.T) {
	idx := &fakeIndex{}
	NewSearcher(&fakeEmbedder{}, idx, nil).Search(context.Background(), "warranty")
	if idx.gotTopK != DefaultTopK {
		t.Fatalf("topK = %d, want %d", idx.gotTopK, DefaultTopK)
	}
}

func TestSearchNotInitialized(t *testing.T) {
	ctx := context.Background()
	if got := NewSearcher(nil, &fakeIndex{}, nil).Search(ctx, "q"); got != NotInitialized {
		t.Fatalf("nil embedder: %q", got)
	}
	if got := NewSearcher(&fakeEmbedder{}, nil, nil).Search(ctx, "q"); got != NotInitialized {
		t.Fatalf("nil index: %q", got)
	}
	var s *Searcher
	if got := s.Search(ctx, "q"); got != NotInitialized {
		t.Fatalf("nil searcher: %q", got)
	}
}

func TestSeed(t *testing.T) {
	idx := &fakeIndex{}
	n, err := Seed(context.Background(), &fakeEmbedder{}, idx, DefaultPolicies)
	if err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if n != len(DefaultPolicies) || len(idx.stored) != len(DefaultPolicies) {
		t.Fatalf("seeded %d, stored %d", n, len(idx.stored))
	}
	if idx.stored[4].ID != "vec_4" || idx.stored[4].Text != DefaultPolicies[4] {
		t.Fatalf("unexpected snippet %+v", idx.stored[4])
	}
}

func TestSeedEmbedError(t *testing.T) {
	_, err := Seed(context.Background(), &fakeEmbedder{err: errors.New("quota")}, &fakeIndex{}, DefaultPolicies)
	if err == nil {
		t.Fatalf("expected error")
	}
}
