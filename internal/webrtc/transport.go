package webrtc

import (
	"fmt"
	"log/slog"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/config"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/utils"
	pion "github.com/pion/webrtc/v4"
)

// Options configures the pion transport.
type Options struct {
	ICEServers []pion.ICEServer
	ForceRelay bool

	// IncludeLoopback gathers 127.0.0.1 candidates, which lets two
	// connections in one process find each other without a network.
	IncludeLoopback bool

	Logger *slog.Logger
}

// OptionsFromConfig builds the ICE server list: STUN always, TURN when
// configured. Relay-only is forced on request or when the host looks like
// it is behind a VPN or CGNAT.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	servers := []pion.ICEServer{{URLs: cfg.STUNServers}}

	turn := cfg.TURNServers()
	if turn != nil {
		username, password := cfg.TURNCredentials()
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}

	return Options{
		ICEServers: servers,
		ForceRelay: turn != nil && (cfg.ForceRelay || utils.ShouldForceRelay()),
		Logger:     logger,
	}
}

// Transport creates pion peer connections for the mesh coordinator.
type Transport struct {
	api    *pion.API
	config pion.Configuration
	logger *slog.Logger
}

func NewTransport(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	se := pion.SettingEngine{LoggerFactory: newLoggerFactory(logger)}
	if opts.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}

	policy := pion.ICETransportPolicyAll
	if opts.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	return &Transport{
		api: pion.NewAPI(pion.WithSettingEngine(se)),
		config: pion.Configuration{
			ICEServers:         opts.ICEServers,
			ICETransportPolicy: policy,
		},
		logger: logger.With("component", "webrtc"),
	}
}

// NewConnection implements mesh.Transport.
func (t *Transport) NewConnection() (mesh.Connection, error) {
	pc, err := t.api.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &connection{pc: pc, logger: t.logger}, nil
}
