package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultSignalingURL = "ws://localhost:8080/ws"
	DefaultListenAddr   = ":8080"
	DefaultTURNUser     = "warpmesh"
	DefaultMaxRoomSize  = 4
	DefaultPolicy       = "keep"
)

// DefaultSTUNServers are the public Google STUN servers.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	// SignalingURL is the relay's WebSocket endpoint
	SignalingURL string

	// ListenAddr is where `warpmesh relay` serves
	ListenAddr string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	NegotiationTimeout time.Duration
	FailurePolicy      string
	MaxRoomSize        int
}

// Options carries CLI flag values. Zero values mean "not set".
type Options struct {
	ConfigFile         string
	SignalingURL       string
	ListenAddr         string
	STUNServers        []string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	ForceRelay         bool
	NegotiationTimeout time.Duration
	FailurePolicy      string
	MaxRoomSize        int
}

// fileConfig is the YAML layout of the optional config file.
type fileConfig struct {
	SignalingURL string   `yaml:"signaling_url"`
	ListenAddr   string   `yaml:"listen_addr"`
	STUNServers  []string `yaml:"stun_servers"`
	TURN         struct {
		Server   string `yaml:"server"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"turn"`
	ForceRelay         bool   `yaml:"force_relay"`
	NegotiationTimeout string `yaml:"negotiation_timeout"`
	FailurePolicy      string `yaml:"failure_policy"`
	MaxRoomSize        int    `yaml:"max_room_size"`
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Config file (Options.ConfigFile or WARPMESH_CONFIG)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		SignalingURL:  DefaultSignalingURL,
		ListenAddr:    DefaultListenAddr,
		STUNServers:   DefaultSTUNServers,
		TURNUser:      DefaultTURNUser,
		FailurePolicy: DefaultPolicy,
		MaxRoomSize:   DefaultMaxRoomSize,
	}

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv("WARPMESH_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOptions(opts)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&c.SignalingURL, f.SignalingURL)
	setString(&c.ListenAddr, f.ListenAddr)
	if len(f.STUNServers) > 0 {
		c.STUNServers = f.STUNServers
	}
	setString(&c.TURNServer, f.TURN.Server)
	setString(&c.TURNUser, f.TURN.Username)
	setString(&c.TURNPass, f.TURN.Password)
	c.ForceRelay = c.ForceRelay || f.ForceRelay
	if f.NegotiationTimeout != "" {
		d, err := time.ParseDuration(f.NegotiationTimeout)
		if err != nil {
			return fmt.Errorf("%w: negotiation_timeout: %v", ErrInvalidConfig, err)
		}
		c.NegotiationTimeout = d
	}
	setString(&c.FailurePolicy, f.FailurePolicy)
	if f.MaxRoomSize != 0 {
		c.MaxRoomSize = f.MaxRoomSize
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.SignalingURL, os.Getenv("SIGNALING_URL"))
	setString(&c.ListenAddr, os.Getenv("LISTEN_ADDR"))
	if v := os.Getenv("STUN_SERVERS"); v != "" {
		c.STUNServers = splitList(v)
	}
	setString(&c.TURNServer, os.Getenv("TURN_SERVER"))
	setString(&c.TURNUser, os.Getenv("TURN_USERNAME"))
	setString(&c.TURNPass, os.Getenv("TURN_PASSWORD"))
	if v := os.Getenv("FORCE_RELAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: FORCE_RELAY: %v", ErrInvalidConfig, err)
		}
		c.ForceRelay = b
	}
	if v := os.Getenv("NEGOTIATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: NEGOTIATION_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.NegotiationTimeout = d
	}
	setString(&c.FailurePolicy, os.Getenv("FAILURE_POLICY"))
	if v := os.Getenv("MAX_ROOM_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MAX_ROOM_SIZE: %v", ErrInvalidConfig, err)
		}
		c.MaxRoomSize = n
	}
	return nil
}

func (c *Config) applyOptions(opts Options) {
	setString(&c.SignalingURL, opts.SignalingURL)
	setString(&c.ListenAddr, opts.ListenAddr)
	if len(opts.STUNServers) > 0 {
		c.STUNServers = opts.STUNServers
	}
	setString(&c.TURNServer, opts.TURNServer)
	setString(&c.TURNUser, opts.TURNUser)
	setString(&c.TURNPass, opts.TURNPass)
	c.ForceRelay = c.ForceRelay || opts.ForceRelay
	if opts.NegotiationTimeout != 0 {
		c.NegotiationTimeout = opts.NegotiationTimeout
	}
	setString(&c.FailurePolicy, opts.FailurePolicy)
	if opts.MaxRoomSize != 0 {
		c.MaxRoomSize = opts.MaxRoomSize
	}
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	switch c.FailurePolicy {
	case "keep", "recreate":
	default:
		return fmt.Errorf("%w: failure policy %q (want keep or recreate)", ErrInvalidConfig, c.FailurePolicy)
	}
	if c.MaxRoomSize < 2 {
		return fmt.Errorf("%w: max room size %d (need at least 2)", ErrInvalidConfig, c.MaxRoomSize)
	}
	if c.NegotiationTimeout < 0 {
		return fmt.Errorf("%w: negative negotiation timeout", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.SignalingURL, "ws://") && !strings.HasPrefix(c.SignalingURL, "wss://") {
		return fmt.Errorf("%w: signaling URL %q must be ws:// or wss://", ErrInvalidConfig, c.SignalingURL)
	}
	return nil
}

// TURNServers returns TURN server URLs if configured
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// TURNCredentials returns TURN username and password
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
