package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "unwarp",
		Short:         "Correct perspective distortion in photographed documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newCorrectCmd(logger), newMatrixCmd())
	return root
}

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
