package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneUpTo uint64

// pruneCmd represents the prune command.
var pruneCmd = &cobra.Command{
	Use:          "prune",
	Short:        "Deletes old segments.",
	Long:         `Deletes segments up to and including the given log version. The active segment is never deleted.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, err := openLogFile()
		if err != nil {
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				fmt.Println(err)
			}
		}()

		pruned, err := logFile.Prune(pruneUpTo)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d segments.\n", pruned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().Uint64VarP(
		&pruneUpTo,
		"up-to",
		"u",
		0,
		"The highest log version to delete.",
	)
	_ = pruneCmd.MarkFlagRequired("up-to")
}
