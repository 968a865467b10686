// Package main provides shellpanelctl, which drives a running shellpanel
// through its control socket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chess10kp/shellpanel/internal/ipc"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:           "shellpanelctl",
	Short:         "Control a running shellpanel",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", ipc.DefaultSocketPath(),
		"Path to the shellpanel control socket")

	rootCmd.AddCommand(
		sendCommand(ipc.CmdRefresh, "Run the command now instead of waiting for the next tick"),
		sendCommand(ipc.CmdShow, "Show the panel"),
		sendCommand(ipc.CmdHide, "Hide the panel immediately"),
		sendCommand(ipc.CmdStatus, "Print the panel state and last output"),
	)
}

func sendCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ipc.Send(socketPath, name)
			if err != nil {
				return err
			}
			if reply != "" {
				fmt.Fprintln(cmd.OutOrStdout(), reply)
			}
			return nil
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nIs shellpanel running?\n", err)
		os.Exit(1)
	}
}
