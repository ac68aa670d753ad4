package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"knowra/src/core/rag"
	"knowra/src/infrastructure/integrations/ollama"
)

func newTestClient(t *testing.T, handler http.Handler) (*ollama.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := ollama.NewClient(ollama.Config{BaseURL: server.URL}, server.Client())
	return client, server
}

func TestIsReachable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux)

	if !client.IsReachable(context.Background()) {
		t.Error("IsReachable() = false, want true")
	}
}

func TestIsReachableDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := ollama.NewClient(ollama.Config{BaseURL: server.URL}, &http.Client{})

	if client.IsReachable(context.Background()) {
		t.Error("IsReachable() = true, want false")
	}
}

func TestEmbedOrderAndConversion(t *testing.T) {
	var prompts []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != ollama.DefaultEmbeddingModel {
			t.Errorf("request model = %q, want %q", req.Model, ollama.DefaultEmbeddingModel)
		}
		prompts = append(prompts, req.Prompt)
		json.NewEncoder(w).Encode(ollama.EmbeddingResponse{
			Embedding: []float64{0.1, 0.2, float64(len(prompts))},
		})
	})
	client, _ := newTestClient(t, mux)

	embeddings, err := client.Embed(context.Background(), []string{"premier", "deuxième"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("Embed() results = %d, want 2", len(embeddings))
	}
	if prompts[0] != "premier" || prompts[1] != "deuxième" {
		t.Errorf("prompts = %v, order not preserved", prompts)
	}
	if embeddings[0][2] != 1 || embeddings[1][2] != 2 {
		t.Errorf("embeddings out of order: %v", embeddings)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))

	embeddings, err := client.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("Embed() results = %d, want 0", len(embeddings))
	}
}

func TestEmbedFailureAbortsBatch(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ollama.EmbeddingResponse{Embedding: []float64{0.1}})
	})
	client, _ := newTestClient(t, mux)

	_, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	var embedErr *rag.EmbeddingServiceError
	if !errors.As(err, &embedErr) {
		t.Fatalf("Embed() error = %v, want *rag.EmbeddingServiceError", err)
	}
	if calls != 2 {
		t.Errorf("requests = %d, want 2 (abort on first failure)", calls)
	}
}

func TestEmbedRaggedDimensions(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		calls++
		embedding := []float64{0.1, 0.2}
		if calls == 2 {
			embedding = []float64{0.1}
		}
		json.NewEncoder(w).Encode(ollama.EmbeddingResponse{Embedding: embedding})
	})
	client, _ := newTestClient(t, mux)

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	var embedErr *rag.EmbeddingServiceError
	if !errors.As(err, &embedErr) {
		t.Fatalf("Embed() error = %v, want *rag.EmbeddingServiceError", err)
	}
}

func TestGenerateSendsPromptAndOptions(t *testing.T) {
	var got ollama.GenerateRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "  Voici la réponse.  ", Done: true})
	})
	client, _ := newTestClient(t, mux)

	answer := client.Generate(context.Background(), "Quelle est la politique de congés ?", "Les congés sont de 25 jours.", "Marie")
	if answer != "Voici la réponse." {
		t.Errorf("Generate() = %q", answer)
	}

	if got.Model != ollama.DefaultModel {
		t.Errorf("model = %q, want %q", got.Model, ollama.DefaultModel)
	}
	if got.Stream {
		t.Error("stream = true, want false")
	}
	if got.Options != ollama.DefaultGenerateOptions() {
		t.Errorf("options = %+v, want defaults", got.Options)
	}
	if !strings.Contains(got.Prompt, "DOCUMENTS INTERNES:") {
		t.Error("prompt is missing the grounding block")
	}
	if !strings.Contains(got.Prompt, "Les congés sont de 25 jours.") {
		t.Error("prompt is missing the grounding content")
	}
	if !strings.Contains(got.Prompt, ollama.RefusalSentence) {
		t.Error("prompt is missing the refusal instruction")
	}
	if !strings.Contains(got.Prompt, "Marie") {
		t.Error("prompt is missing the asker identity")
	}
}

func TestGenerateTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client giving up and
		// cancels the request context instead of blocking Close forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := ollama.NewClient(ollama.Config{
		BaseURL:         server.URL,
		GenerateTimeout: 50 * time.Millisecond,
	}, server.Client())

	answer := client.Generate(context.Background(), "question", "contexte", "")
	if answer != ollama.TimeoutMessage {
		t.Errorf("Generate() = %q, want timeout message", answer)
	}
}

func TestGenerateServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, mux)

	answer := client.Generate(context.Background(), "question", "contexte", "")
	if !strings.HasPrefix(answer, "Erreur: ") {
		t.Errorf("Generate() = %q, want an error message", answer)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "   ", Done: true})
	})
	client, _ := newTestClient(t, mux)

	answer := client.Generate(context.Background(), "question", "contexte", "")
	if answer != ollama.EmptyResponseMessage {
		t.Errorf("Generate() = %q, want %q", answer, ollama.EmptyResponseMessage)
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name         string
		grounding    string
		asker        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "grounded prompt",
			grounding:    "contenu du document",
			wantContains: []string{"DOCUMENTS INTERNES:", "contenu du document", ollama.RefusalSentence},
			wantAbsent:   []string{"L'utilisateur qui pose la question"},
		},
		{
			name:         "grounded prompt with asker",
			grounding:    "contenu",
			asker:        "Paul",
			wantContains: []string{"L'utilisateur qui pose la question est: Paul"},
		},
		{
			name:         "no grounding falls back to the minimal prompt",
			wantContains: []string{"QUESTION: ma question"},
			wantAbsent:   []string{"DOCUMENTS INTERNES:", ollama.RefusalSentence},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := ollama.BuildPrompt("ma question", tt.grounding, tt.asker)
			for _, want := range tt.wantContains {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt is missing %q", want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(prompt, absent) {
					t.Errorf("prompt unexpectedly contains %q", absent)
				}
			}
		})
	}
}
