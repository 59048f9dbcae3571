package cmd

import (
	"errors"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/backbone81/graph-txlog/internal/config"
	"github.com/backbone81/graph-txlog/pkg/txlog"
)

// cliRequirement keeps the database unavailable while the tool works on the transaction log.
const cliRequirement = "txlog-cli"

var (
	directory  string
	configPath string
	verbosity  int

	configuration config.Config
	logger        logr.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "txlog-cli",
	Short: "A tool for interacting with transaction logs.",
	Long: `A tool for interacting with transaction logs.

The tool works on the transaction log directly. Make sure no database is running on the same directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stdr.SetVerbosity(verbosity)
		logger = stdr.New(log.New(os.Stderr, "", log.LstdFlags))

		configuration = config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			configuration = loaded
		}
		if cmd.Flags().Changed("directory") {
			configuration.Directory = directory
		}
		return configuration.Validate()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&directory,
		"directory",
		"d",
		".",
		"The directory the transaction log is located in. Overrides the directory of the configuration file.",
	)

	rootCmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		"",
		"The YAML configuration file to read.",
	)

	rootCmd.PersistentFlags().IntVarP(
		&verbosity,
		"verbosity",
		"v",
		0,
		"The verbosity of the log output. Higher values log more details.",
	)
}

// openLogFile opens the configured transaction log.
func openLogFile() (*txlog.LogFile, error) {
	options, err := configuration.LogFileOptions()
	if err != nil {
		return nil, err
	}
	return txlog.Open(configuration.Directory, append(options, txlog.WithLogger(logger))...)
}

// withCatchUpService opens the transaction log and runs the function with a catch up service on top of it. The
// database is unavailable while the function runs.
func withCatchUpService(run func(logFile *txlog.LogFile, service *txlog.CatchUpService, checkpoints *txlog.CheckpointFile) error) (err error) {
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, logFile.Close())
	}()

	guard := txlog.NewAvailabilityGuard(logger)
	guard.Require(cliRequirement)
	defer guard.Fulfill(cliRequirement)

	service, checkpoints := txlog.NewCatchUpService(logFile, guard, logger)
	return run(logFile, service, checkpoints)
}
