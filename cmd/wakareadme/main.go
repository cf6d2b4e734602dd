package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "wakareadme",
		Short:         "Keep a README section filled with coding statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Optional YAML config file (INPUT_* environment variables win)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(cacheCmd)
}
