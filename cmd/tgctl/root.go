package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "tgctl",
	Short: "Run demo task graphs and pipelines against the taskflow scheduler",
}

func init() {
	viper.SetDefault("workers", runtime.NumCPU())
	viper.SetDefault("profile", true)

	rootCmd.PersistentFlags().Int("workers", runtime.NumCPU(), "executor worker count")
	rootCmd.PersistentFlags().Bool("profile", true, "dump a flame-graph profile after running")

	if err := viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("tgctl")
	viper.AutomaticEnv()

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(conditionCmd)
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func numWorkers() int {
	n := viper.GetInt("workers")
	if n <= 0 {
		return 1
	}
	return n
}
