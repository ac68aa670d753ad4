package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"knowra/src/core/agent"
)

var (
	askTopK    int
	askUser    string
	askSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	settingDefaultConfig()

	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "name of the person asking, forwarded to the prompt")
	askCmd.Flags().BoolVarP(&askSources, "sources", "s", true, "print the sources backing the answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	oc := newOllamaClient()
	index := newWeaviateIndex()
	if err := index.EnsureClass(cmd.Context()); err != nil {
		return fmt.Errorf("failed to ensure index class: %v", err)
	}

	ragAgent := agent.New(oc, index, oc, newAgentConfig())

	answer, err := ragAgent.Ask(cmd.Context(), agent.Question{
		Text:           args[0],
		K:              askTopK,
		ExcludeSources: !askSources,
		Asker:          askUser,
	})
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	fmt.Printf("\nConfidence: %.2f\n", answer.Confidence)
	if askSources && len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s (similarity %.2f)\n", src.Filename, src.Similarity)
		}
	}
	return nil
}
