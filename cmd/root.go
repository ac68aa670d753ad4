package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "knowra",
	Short: "Retrieval-augmented question answering over internal documents",
	Long: `knowra ingests internal documents into a vector index and answers
questions grounded in the retrieved content.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
