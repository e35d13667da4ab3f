// Command boardctl drives a collaborative task board from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Collaborative task board client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("gateway", "", "Board service URL (overrides BOARD_GATEWAY_URL)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (overrides BOARD_TOKEN)")
	rootCmd.PersistentFlags().StringP("board", "b", "", "Board id to select instead of the first board")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(boardsCmd())
	rootCmd.AddCommand(addBoardCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(addTaskCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
