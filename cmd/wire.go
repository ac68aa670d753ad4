package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"knowra/src/core/agent"
	"knowra/src/core/document"
	"knowra/src/core/ingest"
	"knowra/src/infrastructure/integrations/ollama"
	"knowra/src/infrastructure/integrations/unstructured"
	"knowra/src/storage/weaviate"
)

func openDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newOllamaClient() *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:         viper.GetString("ollama.url"),
		Model:           viper.GetString("ollama.model"),
		EmbeddingModel:  viper.GetString("ollama.embedding_model"),
		GenerateTimeout: viper.GetDuration("ollama.generate_timeout"),
	}, &http.Client{})
}

func newWeaviateIndex() *weaviate.Index {
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	return weaviate.NewIndex(wc, viper.GetString("weaviate.class"))
}

func newSplitter() (document.Splitter, error) {
	switch name := viper.GetString("rag.splitter"); name {
	case "words":
		return document.WordSplitter{
			MaxWords: viper.GetInt("rag.max_words"),
		}, nil
	case "sentences":
		return document.SentenceSplitter{
			MaxChars:  viper.GetInt("rag.sentence_max_chars"),
			MaxChunks: viper.GetInt("rag.sentence_max_chunks"),
		}, nil
	case "recursive":
		return document.RecursiveSplitter{
			ChunkSize: viper.GetInt("rag.chunk_size"),
			Overlap:   viper.GetInt("rag.chunk_overlap"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", name)
	}
}

func newPipeline(oc *ollama.Client, index *weaviate.Index) (*ingest.Service, error) {
	splitter, err := newSplitter()
	if err != nil {
		return nil, err
	}

	partitioner := unstructured.NewService(viper.GetString("unstructured.url"), &http.Client{
		Timeout: 120 * time.Second,
	})
	reader := document.NewReader(partitioner, viper.GetInt("rag.max_file_size_mb"))
	chunker := document.NewChunker(splitter)

	return ingest.NewService(reader, chunker, oc, index), nil
}

func newAgentConfig() agent.Config {
	return agent.Config{
		TopK:                 viper.GetInt("rag.top_k"),
		MaxDocContextChars:   viper.GetInt("rag.max_doc_context_chars"),
		MaxTotalContextChars: viper.GetInt("rag.max_total_context_chars"),
		MaxContextDocs:       viper.GetInt("rag.max_context_docs"),
		PreviewChars:         viper.GetInt("rag.preview_chars"),
		ConfidenceBoost:      viper.GetFloat64("rag.confidence_boost"),
	}
}
