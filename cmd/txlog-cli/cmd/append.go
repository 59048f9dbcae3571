package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var (
	appendInput         string
	appendTransactionID uint64
	appendChecksum      uint32
	appendCommitTime    int64
	appendAppendIndex   uint64
)

// appendCmd represents the append command.
var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Appends raw log content to the transaction log.",
	Long: `Appends raw log content to the transaction log. The content is not validated.

When the content ends on a transaction boundary, pass the transaction id together with its checksum and append index.
The transaction log is then allowed to rotate into a new segment. Content after the last commit, rollback or chunk end
is cut off the next time the transaction log is opened.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(appendInput)
		if err != nil {
			return err
		}

		var options []txlog.AppendOption
		if cmd.Flags().Changed("transaction-id") {
			options = append(options, txlog.WithTransaction(txlog.TransactionID{
				ID:         appendTransactionID,
				Checksum:   appendChecksum,
				CommitTime: appendCommitTime,
			}, appendAppendIndex))
		}

		return withCatchUpService(func(_ *txlog.LogFile, service *txlog.CatchUpService, _ *txlog.CheckpointFile) error {
			position, err := service.Append(data, options...)
			if err != nil {
				return err
			}
			fmt.Printf("Appended %d bytes at %s.\n", len(data), position)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(appendCmd)

	appendCmd.Flags().StringVarP(
		&appendInput,
		"input",
		"i",
		"",
		"The file holding the raw log content.",
	)
	_ = appendCmd.MarkFlagRequired("input")

	appendCmd.Flags().Uint64Var(
		&appendTransactionID,
		"transaction-id",
		0,
		"The id of the last transaction in the content.",
	)

	appendCmd.Flags().Uint32Var(
		&appendChecksum,
		"checksum",
		0,
		"The checksum of the last transaction in the content.",
	)

	appendCmd.Flags().Int64Var(
		&appendCommitTime,
		"commit-time",
		0,
		"The commit time of the last transaction in the content in milliseconds since the epoch.",
	)

	appendCmd.Flags().Uint64Var(
		&appendAppendIndex,
		"append-index",
		0,
		"The append index of the last transaction in the content.",
	)
	appendCmd.MarkFlagsRequiredTogether("transaction-id", "append-index")
}
