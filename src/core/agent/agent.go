// Package agent orchestrates the question-answering pipeline: embed the
// question, retrieve similar chunks, assemble a bounded context, ask the
// generation backend and record the exchange.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"knowra/src/core/rag"
	"knowra/src/infrastructure/log"
)

// NoInformationMessage is the fixed answer when retrieval finds nothing.
// The generation backend is not consulted in that case.
const NoInformationMessage = "Je ne trouve pas d'informations pertinentes dans les documents internes pour répondre à votre question."

// Config holds the retrieval and context-assembly policy. All values are
// deliberately configuration rather than constants; the defaults mirror
// the deployed assistant.
type Config struct {
	// TopK is the default number of chunks retrieved per question.
	TopK int
	// MaxDocContextChars caps each document folded into the prompt.
	MaxDocContextChars int
	// MaxTotalContextChars bounds the combined context size independently
	// of the per-document cap.
	MaxTotalContextChars int
	// MaxContextDocs bounds how many retrieved documents reach the prompt,
	// even when more were retrieved for scoring and sourcing.
	MaxContextDocs int
	// PreviewChars caps the content preview attached to each source.
	PreviewChars int
	// ConfidenceBoost scales the mean similarity before clamping.
	ConfidenceBoost float64
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                 2,
		MaxDocContextChars:   800,
		MaxTotalContextChars: 1500,
		MaxContextDocs:       2,
		PreviewChars:         200,
		ConfidenceBoost:      1.2,
	}
}

// Source identifies a retrieved chunk backing an answer.
type Source struct {
	Filename       string  `json:"filename"`
	Source         string  `json:"source"`
	Similarity     float64 `json:"similarity_score"`
	ContentPreview string  `json:"content_preview"`
}

// Turn is one question/answer exchange in the conversation log.
type Turn struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Question carries one query and its per-call options.
type Question struct {
	Text string
	// K overrides Config.TopK when positive.
	K int
	// ExcludeSources strips sources from the answer and the recorded
	// turn. Sources are included by default.
	ExcludeSources bool
	// Asker optionally names the person asking, so the model does not
	// confuse them with names found in the documents.
	Asker string
}

// Answer is the structured reply to one question. Confidence is a
// heuristic derived from retrieval similarity, not a calibrated
// probability of correctness.
type Answer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []Source `json:"sources,omitempty"`
}

// Agent answers questions using only the indexed document collection.
// One Agent owns one conversation log; the index and generation backends
// are shared externally and assumed individually safe for concurrent use.
type Agent struct {
	embedder  rag.Embedder
	index     rag.VectorIndex
	generator rag.Generator
	cfg       Config

	mu      sync.Mutex
	history []Turn
}

// New creates an Agent. Zero config fields fall back to defaults.
func New(embedder rag.Embedder, index rag.VectorIndex, generator rag.Generator, cfg Config) *Agent {
	defaults := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MaxDocContextChars <= 0 {
		cfg.MaxDocContextChars = defaults.MaxDocContextChars
	}
	if cfg.MaxTotalContextChars <= 0 {
		cfg.MaxTotalContextChars = defaults.MaxTotalContextChars
	}
	if cfg.MaxContextDocs <= 0 {
		cfg.MaxContextDocs = defaults.MaxContextDocs
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = defaults.PreviewChars
	}
	if cfg.ConfidenceBoost <= 0 {
		cfg.ConfidenceBoost = defaults.ConfidenceBoost
	}
	return &Agent{
		embedder:  embedder,
		index:     index,
		generator: generator,
		cfg:       cfg,
	}
}

// Ask runs the retrieval pipeline for one question. Embedding or index
// failures propagate as retrieval failures; generation failures have
// already been converted to user-facing messages by the Generator and are
// returned as normal answers with confidence still computed from
// retrieval.
func (a *Agent) Ask(ctx context.Context, q Question) (Answer, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Answer{}, fmt.Errorf("question must not be empty")
	}
	k := q.K
	if k <= 0 {
		k = a.cfg.TopK
	}

	embeddings, err := a.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := a.index.Search(ctx, embeddings[0], k)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to search index: %w", err)
	}

	if len(results) == 0 {
		log.Debug("no relevant chunks found", "question_length", len(text))
		return Answer{
			Answer:     NoInformationMessage,
			Confidence: 0.0,
			Sources:    []Source{},
		}, nil
	}

	contents := make([]string, len(results))
	sources := make([]Source, len(results))
	for i, result := range results {
		contents[i] = result.Content
		sources[i] = Source{
			Filename:       result.Metadata.Filename,
			Source:         result.Metadata.Source,
			Similarity:     result.Similarity,
			ContentPreview: truncate(result.Content, a.cfg.PreviewChars),
		}
	}

	grounding := BuildContext(contents, a.cfg.MaxDocContextChars, a.cfg.MaxTotalContextChars, a.cfg.MaxContextDocs)
	answer := a.generator.Generate(ctx, text, grounding, q.Asker)
	confidence := a.confidence(results)

	turn := Turn{
		Question:   text,
		Answer:     answer,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
	if q.ExcludeSources {
		turn.Sources = []Source{}
	} else {
		turn.Sources = sources
	}

	a.mu.Lock()
	a.history = append(a.history, turn)
	a.mu.Unlock()

	reply := Answer{
		Answer:     answer,
		Confidence: confidence,
	}
	if !q.ExcludeSources {
		reply.Sources = sources
	}
	return reply, nil
}

// confidence is the mean retrieval similarity scaled by the boost factor
// and clamped to [0, 1].
func (a *Agent) confidence(results []rag.Result) float64 {
	total := 0.0
	for _, result := range results {
		total += result.Similarity
	}
	confidence := total / float64(len(results)) * a.cfg.ConfidenceBoost
	if confidence > 1 {
		return 1
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// History returns a defensive copy of the conversation log.
func (a *Agent) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	turns := make([]Turn, len(a.history))
	copy(turns, a.history)
	for i := range turns {
		sources := make([]Source, len(turns[i].Sources))
		copy(sources, turns[i].Sources)
		turns[i].Sources = sources
	}
	return turns
}

// ClearHistory empties the conversation log.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
	log.Info("conversation history cleared")
}
