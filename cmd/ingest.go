package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"knowra/src/core/ingest"
	"knowra/src/core/rag"
	"knowra/src/infrastructure/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Ingest every supported document under a directory",
	Long: `The ingest command walks a directory, extracts and chunks each supported
document, embeds the chunks and adds them to the vector index. Failed
documents are skipped; an unreachable embedding service aborts the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	settingDefaultConfig()
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]

	oc := newOllamaClient()
	index := newWeaviateIndex()
	if err := index.EnsureClass(cmd.Context()); err != nil {
		return fmt.Errorf("failed to ensure index class: %v", err)
	}
	pipeline, err := newPipeline(oc, index)
	if err != nil {
		return err
	}

	paths, err := ingest.SupportedFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No supported documents under %s\n", dir)
		return nil
	}

	bar := progressbar.Default(int64(len(paths)), "ingesting")

	var ingested, skipped, chunks int
	for _, path := range paths {
		result, err := pipeline.ProcessFile(cmd.Context(), path)
		if err != nil {
			var embedErr *rag.EmbeddingServiceError
			if errors.As(err, &embedErr) {
				return fmt.Errorf("embedding service failed, aborting batch: %w", err)
			}
			log.Error(err, "skipping document", "path", path)
			skipped++
			bar.Add(1)
			continue
		}
		ingested++
		chunks += len(result.Chunks)
		bar.Describe(filepath.Base(path))
		bar.Add(1)
	}

	fmt.Printf("\nIngested %d documents (%d chunks), skipped %d\n", ingested, chunks, skipped)
	return nil
}
