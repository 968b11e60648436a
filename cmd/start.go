/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"gmptracker/domain/config"
	"gmptracker/interface/api"
	"gmptracker/interface/exporter"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the tracker service",
	Long: `Starts the HTTP service. Every GET /gmp/{tx} starts tracking that hash; the
other routes poll it, run recovery actions and submit corrections.`,
	Run: func(cmd *cobra.Command, args []string) {
		editable, _ := cmd.Flags().GetBool("edit")
		defaultDependencyInject(editable, nil)
		defer closeDependencies()

		exporter.Init()

		server := &http.Server{
			Addr:              config.GetListenAddr(),
			Handler:           api.NewServer(manager, journalInteractor, log.Logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", server.Addr).Msg("🟢 listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("HTTP server failed")
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		s := <-stop
		log.Info().Str("signal", s.String()).Msg("🔴 Got signal, stopping")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("⚠️ HTTP server did not stop gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
