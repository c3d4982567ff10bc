package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/ui"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/version"
	"github.com/spf13/cobra"
)

var flagConfig string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpmesh",
	Short: "End-to-end encrypted room chat over a WebRTC mesh",
	Long: `warpmesh connects up to four people in a room directly to each other over
WebRTC data channels. A small relay only introduces members and forwards
their connection setup; messages and files travel peer to peer, encrypted
per pair.`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file (also WARPMESH_CONFIG)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
