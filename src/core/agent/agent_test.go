package agent_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"knowra/src/core/agent"
	"knowra/src/core/rag"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = e.embedding
	}
	return out, nil
}

type fakeIndex struct {
	rag.VectorIndex
	results []rag.Result
	err     error
	lastK   int
}

func (x *fakeIndex) Search(ctx context.Context, embedding []float32, n int) ([]rag.Result, error) {
	x.lastK = n
	return x.results, x.err
}

type fakeGenerator struct {
	answer string
	calls  int
}

func (g *fakeGenerator) IsReachable(ctx context.Context) bool { return true }

func (g *fakeGenerator) Generate(ctx context.Context, question, grounding, asker string) string {
	g.calls++
	return g.answer
}

func result(content, filename string, similarity float64) rag.Result {
	return rag.Result{
		Content: content,
		Metadata: rag.Metadata{
			Source:   "/data/" + filename,
			Filename: filename,
		},
		Similarity: similarity,
	}
}

func newAgent(embedder *fakeEmbedder, index *fakeIndex, generator *fakeGenerator) *agent.Agent {
	return agent.New(embedder, index, generator, agent.Config{})
}

func TestAskReturnsGeneratedAnswer(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{
		result("Les congés sont de 25 jours.", "rh.txt", 0.9),
		result("Le télétravail est autorisé.", "tt.txt", 0.7),
	}}
	generator := &fakeGenerator{answer: "25 jours de congés."}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, generator)

	answer, err := a.Ask(context.Background(), agent.Question{Text: "Combien de congés ?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Answer != "25 jours de congés." {
		t.Errorf("Answer = %q", answer.Answer)
	}
	if generator.calls != 1 {
		t.Errorf("generator calls = %d, want 1", generator.calls)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(answer.Sources))
	}
	if answer.Sources[0].Filename != "rh.txt" {
		t.Errorf("first source = %q, want rh.txt", answer.Sources[0].Filename)
	}

	// mean(0.9, 0.7) * 1.2 = 0.96
	if math.Abs(answer.Confidence-0.96) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.96", answer.Confidence)
	}
}

func TestAskSourcesIncludedByDefault(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	answer, err := a.Ask(context.Background(), agent.Question{Text: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("sources = %d, want 1 without any option set", len(answer.Sources))
	}

	turns := a.History()
	if len(turns[0].Sources) != 1 {
		t.Errorf("recorded sources = %d, want 1", len(turns[0].Sources))
	}
}

func TestAskExcludeSources(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	answer, err := a.Ask(context.Background(), agent.Question{Text: "q", ExcludeSources: true})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("sources = %d, want 0 when excluded", len(answer.Sources))
	}

	turns := a.History()
	if len(turns[0].Sources) != 0 {
		t.Errorf("recorded sources = %d, want 0 when excluded", len(turns[0].Sources))
	}
}

func TestAskConfidenceClamped(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{
		result("doc", "a.txt", 0.95),
		result("doc", "b.txt", 0.95),
	}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	answer, err := a.Ask(context.Background(), agent.Question{Text: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", answer.Confidence)
	}
}

func TestAskNoResultsSkipsGeneration(t *testing.T) {
	generator := &fakeGenerator{answer: "should not appear"}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, &fakeIndex{}, generator)

	answer, err := a.Ask(context.Background(), agent.Question{Text: "inconnue"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Answer != agent.NoInformationMessage {
		t.Errorf("Answer = %q, want the no-information message", answer.Answer)
	}
	if answer.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", answer.Confidence)
	}
	if generator.calls != 0 {
		t.Errorf("generator calls = %d, want 0", generator.calls)
	}
	if len(a.History()) != 0 {
		t.Errorf("history length = %d, want 0", len(a.History()))
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, &fakeIndex{}, &fakeGenerator{})

	if _, err := a.Ask(context.Background(), agent.Question{Text: "   "}); err == nil {
		t.Fatal("Ask() error = nil, want error for empty question")
	}
}

func TestAskPropagatesRetrievalFailures(t *testing.T) {
	embedFailure := errors.New("embedding backend down")
	searchFailure := errors.New("index down")

	tests := []struct {
		name     string
		embedder *fakeEmbedder
		index    *fakeIndex
		cause    error
	}{
		{
			name:     "embedding failure",
			embedder: &fakeEmbedder{err: embedFailure},
			index:    &fakeIndex{},
			cause:    embedFailure,
		},
		{
			name:     "search failure",
			embedder: &fakeEmbedder{embedding: []float32{0.1}},
			index:    &fakeIndex{err: searchFailure},
			cause:    searchFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgent(tt.embedder, tt.index, &fakeGenerator{})
			_, err := a.Ask(context.Background(), agent.Question{Text: "q"})
			if !errors.Is(err, tt.cause) {
				t.Errorf("Ask() error = %v, want wrapped %v", err, tt.cause)
			}
			if len(a.History()) != 0 {
				t.Errorf("history length = %d, want 0", len(a.History()))
			}
		})
	}
}

func TestAskDegradedAnswerStillRecorded(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	generator := &fakeGenerator{answer: "Délai d'attente dépassé. Veuillez réessayer."}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, generator)

	answer, err := a.Ask(context.Background(), agent.Question{Text: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Answer != generator.answer {
		t.Errorf("Answer = %q", answer.Answer)
	}

	turns := a.History()
	if len(turns) != 1 {
		t.Fatalf("history length = %d, want 1", len(turns))
	}
	if turns[0].Answer != generator.answer {
		t.Errorf("recorded answer = %q", turns[0].Answer)
	}
	if turns[0].Timestamp.IsZero() {
		t.Error("recorded turn has zero timestamp")
	}
}

func TestAskKOverride(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	if _, err := a.Ask(context.Background(), agent.Question{Text: "q", K: 7}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if index.lastK != 7 {
		t.Errorf("search k = %d, want 7", index.lastK)
	}

	if _, err := a.Ask(context.Background(), agent.Question{Text: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if index.lastK != 2 {
		t.Errorf("default search k = %d, want 2", index.lastK)
	}
}

func TestAskSourcePreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", 300)
	index := &fakeIndex{results: []rag.Result{result(long, "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	answer, err := a.Ask(context.Background(), agent.Question{Text: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	want := strings.Repeat("x", 200) + "..."
	if answer.Sources[0].ContentPreview != want {
		t.Errorf("preview length = %d, want %d", len(answer.Sources[0].ContentPreview), len(want))
	}
}

func TestHistoryDefensiveCopy(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	if _, err := a.Ask(context.Background(), agent.Question{Text: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	turns := a.History()
	turns[0].Answer = "mutated"
	turns[0].Sources[0].Filename = "mutated"

	fresh := a.History()
	if fresh[0].Answer != "ok" {
		t.Errorf("history answer = %q, mutation leaked", fresh[0].Answer)
	}
	if fresh[0].Sources[0].Filename != "a.txt" {
		t.Errorf("history source = %q, mutation leaked", fresh[0].Sources[0].Filename)
	}
}

func TestClearHistory(t *testing.T) {
	index := &fakeIndex{results: []rag.Result{result("doc", "a.txt", 0.5)}}
	a := newAgent(&fakeEmbedder{embedding: []float32{0.1}}, index, &fakeGenerator{answer: "ok"})

	if _, err := a.Ask(context.Background(), agent.Question{Text: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	a.ClearHistory()
	if len(a.History()) != 0 {
		t.Errorf("history length after clear = %d, want 0", len(a.History()))
	}
}
