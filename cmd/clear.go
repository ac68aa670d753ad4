package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record from the vector index",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	settingDefaultConfig()
}

func runClear(cmd *cobra.Command, args []string) error {
	index := newWeaviateIndex()
	if err := index.EnsureClass(cmd.Context()); err != nil {
		return fmt.Errorf("failed to ensure index class: %v", err)
	}

	deleted, err := index.Clear(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d records\n", deleted)
	return nil
}
