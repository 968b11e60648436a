/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"gmptracker/domain/config"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop <tx hash>",
	Short: "Stops tracking a hash on a running service",
	Long:  `Stops tracking a hash on a service which is started previously by 'start' command.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = "http://localhost" + config.GetListenAddr()
			if !strings.HasPrefix(config.GetListenAddr(), ":") {
				addr = "http://" + config.GetListenAddr()
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		target := strings.TrimRight(addr, "/") + "/gmp/" + url.PathEscape(args[0])
		request, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
		if err != nil {
			fmt.Printf("⛔️ Invalid service address - %v\n", err.Error())
			return
		}
		response, err := http.DefaultClient.Do(request)
		if err != nil {
			fmt.Printf("❌ Failed to reach the service - %v\n", err.Error())
			return
		}
		defer response.Body.Close()

		switch response.StatusCode {
		case http.StatusNoContent:
			fmt.Printf("🔴 Stopped tracking %v\n", args[0])
		case http.StatusNotFound:
			fmt.Printf("⚠️ %v is not being tracked\n", args[0])
		default:
			fmt.Printf("❌ Service answered %v\n", response.Status)
		}
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().String("addr", "", "base url of the running service (default from listen_addr)")
}
