package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/config"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/signaling"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/webrtc"
)

func loadConfig(opts config.Options) (*config.Config, error) {
	opts.ConfigFile = flagConfig
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.TURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// relayDialer connects a fresh signaling client for each Connect.
func relayDialer(url string, logger *slog.Logger) mesh.DialFunc {
	return func(ctx context.Context) (mesh.Relay, error) {
		client := signaling.NewClient(url, logger)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// newCoordinator wires the pion transport and the relay client into a
// mesh coordinator.
func newCoordinator(cfg *config.Config, logger *slog.Logger) (*mesh.Coordinator, error) {
	policy, err := mesh.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return nil, err
	}

	transport := webrtc.NewTransport(webrtc.OptionsFromConfig(cfg, logger))
	return mesh.New(transport, relayDialer(cfg.SignalingURL, logger), mesh.Config{
		MaxPeers:           cfg.MaxRoomSize - 1,
		NegotiationTimeout: cfg.NegotiationTimeout,
		FailurePolicy:      policy,
		Logger:             logger,
	}), nil
}
