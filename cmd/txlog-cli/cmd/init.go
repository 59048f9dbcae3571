package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/pkg/txlog"
)

var initStoreID string

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Initializes a new transaction log.",
	Long:         `Initializes a new transaction log. A random store id is generated unless one is given.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := configuration.LogFileOptions()
		if err != nil {
			return err
		}
		options = append(options, txlog.WithLogger(logger))
		if initStoreID != "" {
			storeID, err := txlog.ParseStoreID(initStoreID)
			if err != nil {
				return err
			}
			options = append(options, txlog.WithStoreID(storeID))
		}

		if err := txlog.Init(configuration.Directory, options...); err != nil {
			return err
		}
		fmt.Printf("Transaction log initialized at %q.\n", configuration.Directory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(
		&initStoreID,
		"store-id",
		"",
		"The store id of the new transaction log in UUID format.",
	)
}
