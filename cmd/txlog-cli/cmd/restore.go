package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var restorePosition txlog.LogPosition

// restoreCmd represents the restore command.
var restoreCmd = &cobra.Command{
	Use:          "restore",
	Short:        "Cuts the transaction log back to a position.",
	Long:         `Cuts the transaction log back to a position. Everything written at or after the position is discarded.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatchUpService(func(_ *txlog.LogFile, service *txlog.CatchUpService, _ *txlog.CheckpointFile) error {
			if err := service.Restore(restorePosition); err != nil {
				return err
			}
			fmt.Printf("Transaction log restored to %s.\n", restorePosition)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().Uint64Var(
		&restorePosition.LogVersion,
		"log-version",
		0,
		"The log version of the position.",
	)

	restoreCmd.Flags().Int64Var(
		&restorePosition.ByteOffset,
		"byte-offset",
		0,
		"The byte offset of the position in its segment.",
	)
	_ = restoreCmd.MarkFlagRequired("byte-offset")
}
