package mesh

import (
	"fmt"
	"log/slog"
	"time"
)

// FailurePolicy decides what happens to a link whose transport reports
// "failed".
type FailurePolicy string

const (
	// FailureKeep leaves the link in place and only reports the state.
	FailureKeep FailurePolicy = "keep"
	// FailureRecreate tears the link down; the initiator builds a fresh one
	// while the peer is still in the roster.
	FailureRecreate FailurePolicy = "recreate"
)

const (
	DefaultChannelLabel         = "chat"
	DefaultMaxPeers             = 3
	DefaultMaxPendingCandidates = 64
)

// Send-side flow control for data channels.
const (
	HighWaterMark = 2 * 1024 * 1024
	LowWaterMark  = 512 * 1024
	SendTimeout   = 60 * time.Second
)

// Config tunes a Coordinator. The zero value is usable.
type Config struct {
	ChannelLabel         string
	MaxPeers             int
	MaxPendingCandidates int

	// NegotiationTimeout bounds how long a link may take to open its
	// channel. Zero disables the check.
	NegotiationTimeout time.Duration
	FailurePolicy      FailurePolicy

	Logger *slog.Logger
}

// ParseFailurePolicy accepts "keep" or "recreate"; empty means keep.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailureKeep:
		return FailureKeep, nil
	case FailureRecreate:
		return FailureRecreate, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want keep or recreate)", s)
	}
}

func (c Config) withDefaults() Config {
	if c.ChannelLabel == "" {
		c.ChannelLabel = DefaultChannelLabel
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = DefaultMaxPeers
	}
	if c.MaxPendingCandidates <= 0 {
		c.MaxPendingCandidates = DefaultMaxPendingCandidates
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = FailureKeep
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
