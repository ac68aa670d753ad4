package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"knowra/src/core/rag"
	"knowra/src/infrastructure/log"
)

const (
	DefaultURL = "http://localhost:11434"

	DefaultModel          = "llama3:8b"
	DefaultEmbeddingModel = "nomic-embed-text"

	// Local inference is slow; the generation timeout is deliberately long.
	DefaultGenerateTimeout = 180 * time.Second
	probeTimeout           = 5 * time.Second
)

// GenerateOptions are the decoding parameters sent with every generation
// request. The defaults bias toward deterministic, on-topic completions.
type GenerateOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	NumPredict    int     `json:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// DefaultGenerateOptions returns the policy defaults.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature:   0.3,
		TopP:          0.8,
		NumPredict:    1000,
		RepeatPenalty: 1.1,
	}
}

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL         string
	Model           string
	EmbeddingModel  string
	GenerateTimeout time.Duration
	Options         GenerateOptions
}

// EmbeddingRequest represents the request structure for embeddings
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse represents the response structure from embeddings
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// GenerateRequest represents the request structure for model generation
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateResponse represents the response structure from generation
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client talks to an Ollama server. It is both the embedding adapter and
// the inference client of the pipeline.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a new Ollama API client
func NewClient(cfg Config, c *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.GenerateTimeout == 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.Options == (GenerateOptions{}) {
		cfg.Options = DefaultGenerateOptions()
	}
	if c == nil {
		c = &http.Client{}
	}
	return &Client{
		httpClient: c,
		cfg:        cfg,
	}
}

// IsReachable probes the model-list endpoint with a short timeout.
func (c *Client) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("ollama is not reachable", "error", err.Error())
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Embed converts texts into embedding vectors, one request per text. The
// result has the same length and order as the input. Any failure, or a
// dimension disagreement between results, aborts the whole call: no
// partial or ragged output ever escapes.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	dimension := 0
	for i, text := range texts {
		embedding, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, &rag.EmbeddingServiceError{Err: fmt.Errorf("text %d of %d: %w", i+1, len(texts), err)}
		}
		if dimension == 0 {
			dimension = len(embedding)
		} else if len(embedding) != dimension {
			return nil, &rag.EmbeddingServiceError{
				Err: fmt.Errorf("ragged result: text %d has dimension %d, expected %d", i+1, len(embedding), dimension),
			}
		}
		embeddings = append(embeddings, embedding)
	}
	return embeddings, nil
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody := EmbeddingRequest{
		Model:  c.cfg.EmbeddingModel,
		Prompt: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %s", resp.Status)
	}

	var result EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned an empty vector")
	}

	// Convert float64 to float32
	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// Generate builds the grounding prompt and requests a completion. It never
// returns an error: a timeout yields the fixed timeout message and any
// other failure yields a message embedding the cause, so the caller can
// surface it as a normal answer.
func (c *Client) Generate(ctx context.Context, question, grounding, asker string) string {
	prompt := BuildPrompt(question, grounding, asker)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	reqBody := GenerateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.cfg.Options,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return generationErrorMessage(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return generationErrorMessage(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Error(err, "generation timed out", "timeout", c.cfg.GenerateTimeout.String())
			return TimeoutMessage
		}
		log.Error(err, "failed to make request to ollama")
		return generationErrorMessage(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("generation endpoint returned %s", resp.Status)
		log.Error(err, "ollama rejected the generation request")
		return generationErrorMessage(err)
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Error(err, "failed to decode generation response")
		return generationErrorMessage(err)
	}

	answer := strings.TrimSpace(result.Response)
	if answer == "" {
		return EmptyResponseMessage
	}
	return answer
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
