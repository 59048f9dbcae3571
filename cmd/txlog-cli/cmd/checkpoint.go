package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var (
	checkpointTransactionID uint64
	checkpointAppendIndex   uint64
	checkpointReason        string
)

// checkpointCmd represents the checkpoint command.
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Writes or shows detached checkpoints.",
	Long: `Writes a detached checkpoint covering everything up to and including the given transaction. Without a
transaction id, the latest checkpoint is shown.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatchUpService(func(_ *txlog.LogFile, service *txlog.CatchUpService, checkpoints *txlog.CheckpointFile) error {
			if cmd.Flags().Changed("transaction-id") {
				transactionID := txlog.TransactionID{ID: checkpointTransactionID}
				if err := service.AppendCheckpoint(transactionID, checkpointAppendIndex, checkpointReason); err != nil {
					return err
				}
			}

			latest, err := checkpoints.Latest()
			if errors.Is(err, txlog.ErrNoCheckpoint) {
				fmt.Println("No checkpoint available.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Transaction ID:        %d\n", latest.TransactionID)
			fmt.Printf("Last Append Index:     %d\n", latest.LastAppendIndex)
			fmt.Printf("Position:              %s\n", latest.LogPosition)
			fmt.Printf("Kernel Version:        %s\n", latest.Version)
			fmt.Printf("Reason:                %s\n", latest.Reason)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)

	checkpointCmd.Flags().Uint64Var(
		&checkpointTransactionID,
		"transaction-id",
		0,
		"The id of the last transaction covered by the checkpoint.",
	)

	checkpointCmd.Flags().Uint64Var(
		&checkpointAppendIndex,
		"append-index",
		0,
		"The highest append index covered by the checkpoint.",
	)

	checkpointCmd.Flags().StringVar(
		&checkpointReason,
		"reason",
		"txlog-cli",
		"Why the checkpoint was written.",
	)
}
