package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var describeEntries bool

// describeCmd represents the describe command.
var describeCmd = &cobra.Command{
	Use:          "describe",
	Short:        "Provides detailed information about the transaction log.",
	Long:         `Provides detailed information about the transaction log.`,
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

		lowest, err := logFile.LowestLogVersion()
		if err != nil {
			return err
		}
		fmt.Printf("Store ID:              %s\n", logFile.StoreID())
		fmt.Printf("End:                   %s\n", logFile.Position())
		fmt.Println()

		for logVersion := lowest; logVersion <= logFile.HighestLogVersion(); logVersion++ {
			header, err := logFile.ExtractHeader(logVersion)
			if err != nil {
				return err
			}
			fmt.Printf("Log Version:           %d\n", header.LogVersion)
			fmt.Printf("Kernel Version:        %s\n", header.KernelVersion)
			fmt.Printf("Last Committed Tx ID:  %d\n", header.LastCommittedTxID)
			fmt.Printf("Last Append Index:     %d\n", header.LastAppendIndex)
			fmt.Printf("Previous Checksum:     %08x\n", header.PreviousChecksum)
			if describeEntries {
				if err := describeSegmentEntries(logFile, header); err != nil {
					return err
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func describeSegmentEntries(logFile *txlog.LogFile, header txlog.Header) error {
	channel, err := logFile.OpenForVersion(header.LogVersion)
	if err != nil {
		return err
	}
	defer channel.Close() //nolint:errcheck // The channel was only read from.

	start := txlog.LogPosition{LogVersion: header.LogVersion, ByteOffset: txlog.SegmentHeaderSize}
	reader := txlog.NewEntryReader(
		bufio.NewReader(io.NewSectionReader(channel, start.ByteOffset, 1<<62)),
		start,
		txlog.WithPreviousChecksum(header.PreviousChecksum),
	)
	for reader.Next() {
		fmt.Printf("  %-22s %s %s\n", reader.Position(), reader.Value().Type(), reader.Value().KernelVersion())
	}
	return reader.Err()
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().BoolVarP(
		&describeEntries,
		"entries",
		"e",
		false,
		"Lists every entry of every segment.",
	)
}
