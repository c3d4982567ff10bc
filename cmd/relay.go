package cmd

import (
	"log/slog"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/config"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/relay"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagListen      string
	flagMaxRoomSize int
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay",
	Long: `Run the websocket relay that introduces room members and forwards their
connection setup. It never sees chat content.

Examples:
  warpmesh relay
  warpmesh relay --listen :9000 --max-room-size 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{
			ListenAddr:  flagListen,
			MaxRoomSize: flagMaxRoomSize,
		})
		if err != nil {
			return err
		}

		srv := relay.NewServer(cfg.ListenAddr, cfg.MaxRoomSize, slog.Default())
		ui.PrintInfof("Relay listening on %s (rooms of up to %d)", cfg.ListenAddr, cfg.MaxRoomSize)
		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	relayCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Address to listen on (default :8080)")
	relayCmd.Flags().IntVar(&flagMaxRoomSize, "max-room-size", 0, "Members allowed per room (default 4)")
	rootCmd.AddCommand(relayCmd)
}
