/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"gmptracker/domain"
	"gmptracker/domain/util"
	"gmptracker/usecase"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track <tx hash>",
	Short: "Follows one GMP call on the console",
	Long: `Follows one GMP call on the console, printing its steps after every poll.
With --action the given recovery action runs once the call is found and the
action is eligible. To stop it, press Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		editable, _ := cmd.Flags().GetBool("edit")
		once, _ := cmd.Flags().GetBool("once")
		actionName, _ := cmd.Flags().GetString("action")
		refundAddress, _ := cmd.Flags().GetString("refund-address")

		var action domain.Action
		if actionName != "" {
			var ok bool
			if action, ok = domain.ParseAction(actionName); !ok {
				fmt.Printf("⛔️ Unknown action '%v', use one of %v\n", actionName, domain.Actions)
				return
			}
		}

		updates := make(chan usecase.TrackerState, 1)
		defaultDependencyInject(editable, func(state usecase.TrackerState) {
			// keep only the latest state
			select {
			case <-updates:
			default:
			}
			updates <- state
		})
		defer closeDependencies()

		tracker, err := manager.Track(args[0])
		if err != nil {
			log.Error().Err(err).Msg("❌ Unable to track")
			return
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		lastPolls := 0
		requested := action == ""
		for {
			select {
			case s := <-stop:
				log.Info().Str("signal", s.String()).Msg("🔴 Got signal, stopping")
				return

			case state := <-updates:
				if state.Polls == lastPolls && !state.Actions[action].Settled() {
					continue
				}
				lastPolls = state.Polls
				printState(state)

				if !requested && state.Snapshot.Found && state.Snapshot.Eligibility.Allows(action) {
					requested = true
					request := usecase.ActionRequest{Action: action, AddGas: domain.AddGasOptions{RefundAddress: refundAddress}}
					if err := tracker.Do(context.Background(), request); err != nil {
						log.Error().Err(err).Str("action", string(action)).Msg("❌ Action rejected")
					}
				}
				if once && state.Polls > 0 && state.Pending == "" && requested {
					return
				}
			}
		}
	},
}

func printState(state usecase.TrackerState) {
	snapshot := state.Snapshot
	fmt.Printf("------------- %v (poll #%d) -----------------\n", util.Ellipse(state.TxHash, 10), state.Polls)
	if !snapshot.Found {
		fmt.Printf("🔎 not indexed yet\n")
		return
	}

	fmt.Printf("status: %v", snapshot.Status)
	if snapshot.CallAmount != "" {
		fmt.Printf(" | amount: %v", snapshot.CallAmount)
	}
	if snapshot.TimeSpent != "" {
		fmt.Printf(" | time spent: %v", snapshot.TimeSpent)
	}
	fmt.Printf("\n")

	for i, step := range snapshot.Steps {
		marker := "  "
		if i == snapshot.CurrentStep {
			marker = "->"
		}
		hash := ""
		if step.Event != nil {
			hash = util.Ellipse(step.Event.Hash(), 8)
		}
		fmt.Printf("%v #%d %-22v %-9v %v\n", marker, i+1, step.Title, step.State, hash)
	}

	if snapshot.ExecutionError != nil && snapshot.ExecutionError.Message != "" {
		fmt.Printf("⚠️ %v\n", snapshot.ExecutionError.Message)
	}
	if snapshot.ExecutionError != nil && snapshot.ExecutionError.NotEnoughGas != "" {
		fmt.Printf("⚠️ %v\n", snapshot.ExecutionError.NotEnoughGas)
	}

	available := make([]string, 0, len(domain.Actions))
	for _, action := range domain.Actions {
		if snapshot.Eligibility.Allows(action) {
			available = append(available, string(action))
		}
	}
	if len(available) > 0 {
		fmt.Printf("available actions: %v\n", strings.Join(available, ", "))
	}

	for _, action := range domain.Actions {
		response := state.Response(action)
		if response.State == domain.ActionStateIdle {
			continue
		}
		fmt.Printf("[%v] %v %v %v\n", action, response.State, response.Message, util.Ellipse(response.TxHash, 8))
	}
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().Bool("once", false, "exit after the first completed poll, or once the requested action settled")
	trackCmd.Flags().String("action", "", "recovery action to run once eligible (approve, execute, add_gas, refund)")
	trackCmd.Flags().String("refund-address", "", "refund address for add_gas")
}
