/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"gmptracker/domain/config"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gmptracker",
	Short: "Tracks cross-chain GMP calls and recovers stuck ones",
	Long: `Tracks cross-chain general message passing calls by their source transaction
hash, derives their lifecycle, and offers the recovery actions (approve, execute,
add gas, refund) that are valid for their current state.`,
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
	cobra.OnInitialize(func() {
		config.ReadConfig(configFile)
	})

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().Bool("edit", false, "offer manual corrections (never on mainnet unless staging)")
}
