package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/chat"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/config"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/relay"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/ui"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/utils"
	"github.com/spf13/cobra"
)

const (
	connectTimeout = 15 * time.Second
	joinTimeout    = 10 * time.Second
)

var (
	flagName        string
	flagRoom        string
	flagSignaling   string
	flagDownloadDir string
	flagSTUN        []string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagForceRelay  bool
	flagTimeout     time.Duration
	flagPolicy      string
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a room and chat with its members",
	Long: `Join a room on the relay and open an encrypted peer-to-peer link to every
other member. Lines typed are sent to everyone in the room.

Commands inside a session:
  /peers          show members and link state
  /file <path>    send a file or directory to everyone
  /help           list commands
  /quit           leave the room

Examples:
  warpmesh join --name alice --room plucky-harbor-otter
  warpmesh join --signaling wss://relay.example.org/ws --turn turn.example.org`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{
			SignalingURL:       flagSignaling,
			STUNServers:        flagSTUN,
			TURNServer:         flagTURN,
			TURNUser:           flagTURNUser,
			TURNPass:           flagTURNPass,
			ForceRelay:         flagForceRelay,
			NegotiationTimeout: flagTimeout,
			FailurePolicy:      flagPolicy,
		})
		if err != nil {
			return err
		}

		name := flagName
		if name == "" {
			name = defaultName()
		}
		room := flagRoom
		if room == "" {
			room = relay.RoomName()
		}
		return runJoin(cmd.Context(), cfg, name, room)
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (default: $USER)")
	joinCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "Room to join (default: a new random room)")
	joinCmd.Flags().StringVar(&flagSignaling, "signaling", "", "Relay websocket URL")
	joinCmd.Flags().StringVarP(&flagDownloadDir, "output", "o", ".", "Directory for received files")
	joinCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVar(&flagForceRelay, "relay", false, "Only use TURN relay candidates")
	joinCmd.Flags().DurationVar(&flagTimeout, "negotiation-timeout", 0, "Give up on a peer whose channel is not open in time (0 disables)")
	joinCmd.Flags().StringVar(&flagPolicy, "on-failure", "", "What to do with a failed peer link: keep or recreate")
	rootCmd.AddCommand(joinCmd)
}

func defaultName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

// chatSession is the interactive state of one join.
type chatSession struct {
	coord  *mesh.Coordinator
	client *chat.Client
	self   string
	room   string

	roster    map[string]string
	peersSeen map[string]bool
	started   time.Time
}

func runJoin(ctx context.Context, cfg *config.Config, name, room string) error {
	logger := slog.Default()

	coord, err := newCoordinator(cfg, logger)
	if err != nil {
		return err
	}
	defer coord.Close()

	client, err := chat.NewClient(coord, chat.Options{DownloadDir: flagDownloadDir, Logger: logger})
	if err != nil {
		return err
	}

	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = coord.Connect(connectCtx)
	cancel()
	if err != nil {
		sp.Error("Could not reach the relay")
		return fmt.Errorf("connect to %s: %w", cfg.SignalingURL, err)
	}
	sp.Success("Connected to relay")

	runCtx, stopClient := context.WithCancel(ctx)
	defer stopClient()
	go client.Run(runCtx)

	s := &chatSession{
		coord:     coord,
		client:    client,
		self:      name,
		room:      room,
		roster:    make(map[string]string),
		peersSeen: make(map[string]bool),
		started:   time.Now(),
	}

	if err := coord.Join(name, room); err != nil {
		return err
	}
	if err := s.awaitJoin(ctx); err != nil {
		return err
	}

	err = s.loop(ctx)
	_ = coord.Leave()
	s.printSummary()
	return err
}

// awaitJoin consumes events until the relay confirms or rejects the join.
func (s *chatSession) awaitJoin(ctx context.Context) error {
	sp := ui.NewWaitingSpinner(fmt.Sprintf("Joining %s...", s.room))
	sp.Start()
	defer sp.Stop()

	timeout := time.NewTimer(joinTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("relay did not confirm the join")
		case e, ok := <-s.client.Events():
			if !ok {
				return errors.New("relay connection closed")
			}
			me, isMesh := e.(chat.MeshEvent)
			if !isMesh {
				continue
			}
			switch ev := me.Event.(type) {
			case mesh.RoomJoined:
				sp.Stop()
				fmt.Println(ui.RoomBanner(ev.RoomID, s.self))
				return nil
			case mesh.ErrorReported:
				return fmt.Errorf("relay refused join: %s", ev.Message)
			case mesh.Disconnected:
				return errors.New("relay connection closed")
			default:
				s.handle(e)
			}
		}
	}
}

func (s *chatSession) loop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fileDone := make(chan string, 4)

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.command(ctx, strings.TrimSpace(line), fileDone); quit {
				return nil
			}

		case msg := <-fileDone:
			fmt.Println(msg)

		case e, ok := <-s.client.Events():
			if !ok {
				return nil
			}
			if s.handle(e) {
				return errors.New("lost connection to the relay")
			}
		}
	}
}

// command runs one input line and reports whether the session should end.
func (s *chatSession) command(ctx context.Context, line string, fileDone chan<- string) bool {
	switch {
	case line == "":
		return false
	case line == "/quit" || line == "/exit":
		return true
	case line == "/help":
		fmt.Println(ui.MutedStyle.Render("/peers  /file <path>  /quit"))
	case line == "/peers":
		ui.RenderRoster(s.rosterRows())
	case strings.HasPrefix(line, "/file"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file"))
		if path == "" {
			ui.PrintWarning("usage: /file <path>")
			return false
		}
		fmt.Println(ui.EventLine(ui.IconFile, "sending "+path))
		go func() {
			n, err := s.client.SendFile(ctx, path)
			if err != nil {
				fileDone <- ui.ErrorStyle.Render(fmt.Sprintf("%s %s: %v", ui.IconError, path, err))
				return
			}
			fileDone <- ui.EventLine(ui.IconSuccess, fmt.Sprintf("%s delivered to %d peer(s)", path, n))
		}()
	case strings.HasPrefix(line, "/"):
		ui.PrintWarningf("unknown command %s (try /help)", line)
	default:
		if n := s.client.SendText(line); n == 0 {
			ui.PrintWarning("not delivered: no peer has a secure channel yet")
			return false
		}
		fmt.Println(ui.ChatLine(time.Now(), s.self, line, true))
	}
	return false
}

// handle prints one event and reports whether the relay went away.
func (s *chatSession) handle(e chat.Event) bool {
	switch ev := e.(type) {
	case chat.TextReceived:
		fmt.Println(ui.ChatLine(ev.SentAt, ev.Name, ev.Text, false))
	case chat.PeerSecured:
		fmt.Println(ui.EventLine(ui.IconLock, ev.Name+" secured"))
	case chat.FileOffered:
		fmt.Println(ui.EventLine(ui.IconFile, fmt.Sprintf("%s is sending %s (%s)", s.name(ev.PeerID), ev.Name, utils.FormatSize(ev.Size))))
	case chat.FileReceived:
		fmt.Println(ui.EventLine(ui.IconComplete, fmt.Sprintf("received %s from %s -> %s", ev.File, ev.Name, ev.Path)))
	case chat.FileFailed:
		ui.PrintWarningf("file %s from %s failed: %v", ev.Name, s.name(ev.PeerID), ev.Err)
	case chat.MeshEvent:
		return s.handleMesh(ev.Event)
	}
	return false
}

func (s *chatSession) handleMesh(e mesh.Event) bool {
	switch ev := e.(type) {
	case mesh.RosterChanged:
		next := make(map[string]string, len(ev.Roster))
		for _, entry := range ev.Roster {
			next[entry.PeerID] = entry.DisplayName
			if _, known := s.roster[entry.PeerID]; !known {
				fmt.Println(ui.EventLine(ui.IconPeer, entry.DisplayName+" is in the room"))
			}
		}
		for id, name := range s.roster {
			if _, still := next[id]; !still {
				fmt.Println(ui.EventLine(ui.IconLeave, name+" left"))
			}
		}
		s.roster = next
	case mesh.PeerAdded:
		s.peersSeen[ev.PeerID] = true
	case mesh.ConnectionStateChanged:
		if ev.State == mesh.ConnectionFailed || ev.State == mesh.ConnectionDisconnected {
			ui.PrintWarningf("link to %s is %s", s.name(ev.PeerID), ev.State)
		}
	case mesh.NegotiationTimedOut:
		ui.PrintWarningf("could not connect to %s in time", s.name(ev.PeerID))
	case mesh.ErrorReported:
		ui.PrintError(ev.Message)
	case mesh.Disconnected:
		return true
	}
	return false
}

func (s *chatSession) name(peerID string) string {
	if n, ok := s.roster[peerID]; ok && n != "" {
		return n
	}
	return peerID
}

func (s *chatSession) rosterRows() []ui.PeerRow {
	snap := s.coord.Snapshot()
	links := make(map[string]mesh.PeerStatus, len(snap.Peers))
	for _, p := range snap.Peers {
		links[p.PeerID] = p
	}
	secured := make(map[string]bool)
	for _, id := range s.client.SecuredPeers() {
		secured[id] = true
	}

	rows := make([]ui.PeerRow, 0, len(snap.Roster))
	for _, entry := range snap.Roster {
		row := ui.PeerRow{Name: entry.DisplayName, PeerID: entry.PeerID, Secured: secured[entry.PeerID]}
		if link, ok := links[entry.PeerID]; ok {
			row.Linked = true
			row.Role = link.Role.String()
			row.Channel = link.Channel.String()
			row.Connection = string(link.Connection)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func (s *chatSession) printSummary() {
	stats := s.client.Stats()
	fmt.Println()
	ui.WriteSummary(os.Stdout, ui.SessionSummary{
		Room:             s.room,
		Duration:         time.Since(s.started),
		PeersSeen:        len(s.peersSeen),
		MessagesSent:     stats.MessagesSent,
		MessagesReceived: stats.MessagesReceived,
		FilesSent:        stats.FilesSent,
		FilesReceived:    stats.FilesReceived,
		BytesSent:        stats.BytesSent,
		BytesReceived:    stats.BytesReceived,
	})
}
