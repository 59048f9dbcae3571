package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var (
	channelsFrom   uint64
	channelsOutput string
)

// channelsCmd represents the channels command.
var channelsCmd = &cobra.Command{
	Use:          "channels",
	Short:        "Lists the channels covering the transaction log from an append index.",
	Long:         `Lists the channels covering the transaction log from an append index. The raw log content can be written to a file for shipping it to a catching up store.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatchUpService(func(_ *txlog.LogFile, service *txlog.CatchUpService, _ *txlog.CheckpointFile) (err error) {
			channels, err := service.LogFilesChannels(channelsFrom)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, channels.Close())
			}()

			for _, channel := range channels.Channels() {
				fmt.Printf("Log Version: %-6d Range: %d-%d Append Indexes: %d-%d Kernel Version: %s\n",
					channel.LogVersion,
					channel.StartOffset,
					channel.EndOffset,
					channel.StartAppendIndex,
					channel.LastAppendIndex,
					channel.KernelVersion,
				)
			}
			if channelsOutput == "" {
				return nil
			}
			return writeChannels(channels, channelsOutput)
		})
	},
}

func writeChannels(channels *txlog.TransactionLogChannels, filePath string) (err error) {
	file, err := os.Create(filePath) //nolint:gosec // The path is given by the user on purpose.
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	written := int64(0)
	for _, channel := range channels.Channels() {
		n, err := io.Copy(file, channel.Reader())
		written += n
		if err != nil {
			return err
		}
	}
	fmt.Printf("Wrote %d bytes to %q.\n", written, filePath)
	return file.Sync()
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().Uint64VarP(
		&channelsFrom,
		"from",
		"f",
		1,
		"The append index to start from.",
	)

	channelsCmd.Flags().StringVarP(
		&channelsOutput,
		"output",
		"o",
		"",
		"The file to write the raw log content to.",
	)
}
