package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configFile string

	root := &cobra.Command{
		Use:     "simdog",
		Short:   "Find similar files",
		Version: version + " (" + commit + ")",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/simdog/config.yaml)")

	root.AddCommand(newScanCmd(&configFile))

	if err := root.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			return 130
		}
		return 1
	}
	return 0
}
