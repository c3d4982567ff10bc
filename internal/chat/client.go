package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/files"
	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/mesh"
	"github.com/google/uuid"
)

const (
	eventBuffer        = 256
	DefaultMaxFileSize = 100 * 1024 * 1024
)

var ErrNoSecuredPeers = errors.New("no peer has completed key exchange")

// Mesh is the part of the coordinator the chat client drives.
type Mesh interface {
	SendToPeer(peerID, payload string) bool
	WaitWritable(ctx context.Context, peerID string) error
	Events() <-chan mesh.Event
}

// Options for a chat client.
type Options struct {
	DownloadDir string
	MaxFileSize int64
	Logger      *slog.Logger
}

// Stats counts what a client moved during its lifetime.
type Stats struct {
	MessagesSent     int
	MessagesReceived int
	FilesSent        int
	FilesReceived    int
	BytesSent        int64
	BytesReceived    int64
	Started          time.Time
}

type peerState struct {
	name   string
	cipher *Cipher
}

// Client layers end-to-end encrypted text and files over the mesh. Every
// peer pair runs its own key exchange once its channel opens.
type Client struct {
	mesh   Mesh
	keys   *KeyPair
	opts   Options
	logger *slog.Logger
	events chan Event

	mu    sync.Mutex
	names map[string]string
	peers map[string]*peerState
	stats Stats

	// owned by Run
	incoming map[string]*incomingFile
}

func NewClient(m Mesh, opts Options) (*Client, error) {
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	return &Client{
		mesh:     m,
		keys:     keys,
		opts:     opts,
		logger:   opts.Logger.With("component", "chat"),
		events:   make(chan Event, eventBuffer),
		names:    make(map[string]string),
		peers:    make(map[string]*peerState),
		incoming: make(map[string]*incomingFile),
		stats:    Stats{Started: time.Now()},
	}, nil
}

// Events yields chat events. It is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run consumes mesh events until ctx ends or the mesh event stream closes.
func (c *Client) Run(ctx context.Context) {
	defer close(c.events)
	defer c.abortIncoming()

	meshEvents := c.mesh.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-meshEvents:
			if !ok {
				return
			}
			c.handleMeshEvent(ctx, e)
		}
	}
}

func (c *Client) emit(ctx context.Context, e Event) {
	select {
	case c.events <- e:
	case <-ctx.Done():
	}
}

func (c *Client) handleMeshEvent(ctx context.Context, e mesh.Event) {
	switch ev := e.(type) {
	case mesh.RosterChanged:
		c.mu.Lock()
		for _, entry := range ev.Roster {
			c.names[entry.PeerID] = entry.DisplayName
		}
		c.mu.Unlock()
	case mesh.ChannelOpened:
		c.sendKey(ev.PeerID)
	case mesh.PeerRemoved:
		c.forgetPeer(ev.PeerID)
	case mesh.PayloadReceived:
		c.handlePayload(ctx, ev.PeerID, ev.Payload)
		return
	}
	c.emit(ctx, MeshEvent{Event: e})
}

func (c *Client) sendKey(peerID string) {
	msg, err := NewMessage(TypeKeyExchange, KeyExchangePayload{PublicKey: c.keys.PublicKey()})
	if err != nil {
		c.logger.Error("encoding key exchange", "error", err)
		return
	}
	frame, err := Encode(msg)
	if err != nil {
		c.logger.Error("encoding key exchange", "error", err)
		return
	}
	if !c.mesh.SendToPeer(peerID, frame) {
		c.logger.Warn("key exchange not delivered", "peer", peerID)
	}
}

func (c *Client) forgetPeer(peerID string) {
	c.mu.Lock()
	delete(c.peers, peerID)
	c.mu.Unlock()

	for key, in := range c.incoming {
		if in.meta.ID != "" && key == transferKey(peerID, in.meta.ID) {
			in.abort()
			delete(c.incoming, key)
		}
	}
}

func (c *Client) abortIncoming() {
	for key, in := range c.incoming {
		in.abort()
		delete(c.incoming, key)
	}
}

// PeerName returns the display name for a peer id, or the id itself.
func (c *Client) PeerName(peerID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.names[peerID]; ok && name != "" {
		return name
	}
	return peerID
}

// Stats returns a copy of the counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// SecuredPeers lists peers that completed key exchange.
func (c *Client) SecuredPeers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.peers))
	for id := range c.peers {
		ids = append(ids, id)
	}
	return ids
}

// SendText encrypts text for every secured peer and returns how many
// accepted it. Peers whose key is not yet established are skipped.
func (c *Client) SendText(text string) int {
	payload := TextPayload{Text: text, SentAt: time.Now().UnixMilli()}

	sent := 0
	for _, id := range c.SecuredPeers() {
		if err := c.sendSealed(id, TypeText, payload); err != nil {
			c.logger.Debug("text not delivered", "peer", id, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		c.mu.Lock()
		c.stats.MessagesSent++
		c.mu.Unlock()
	}
	return sent
}

func (c *Client) sendSealed(peerID, typ string, payload any) error {
	c.mu.Lock()
	peer, ok := c.peers[peerID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", peerID, mesh.ErrUnknownPeer)
	}

	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	sealed, err := peer.cipher.Seal(msg.Payload)
	if err != nil {
		return err
	}
	msg.Payload = sealed

	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	if !c.mesh.SendToPeer(peerID, frame) {
		return mesh.ErrChannelNotOpen
	}
	return nil
}

// SendFile sends a file (or a zipped directory) to every secured peer and
// returns how many received all of it.
func (c *Client) SendFile(ctx context.Context, path string) (int, error) {
	info, err := files.Prepare(path, c.opts.MaxFileSize)
	if err != nil {
		return 0, err
	}
	defer info.Cleanup()

	targets := c.SecuredPeers()
	if len(targets) == 0 {
		return 0, ErrNoSecuredPeers
	}

	digest, err := digestFile(info.Path)
	if err != nil {
		return 0, fmt.Errorf("hashing %s: %w", info.Name, err)
	}

	meta := FileMetaPayload{
		ID:     uuid.NewString(),
		Name:   info.Name,
		Size:   info.Size,
		Type:   info.Type,
		Chunks: chunkCount(info.Size),
		SHA256: digest,
	}

	live := make(map[string]bool, len(targets))
	for _, id := range targets {
		if err := c.sendSealed(id, TypeFileMeta, meta); err == nil {
			live[id] = true
		}
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	for index := 0; index < meta.Chunks && len(live) > 0; index++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("reading %s: %w", info.Name, err)
		}
		chunk := FileChunkPayload{ID: meta.ID, Index: index, Bytes: buf[:n]}
		for id := range live {
			if err := c.mesh.WaitWritable(ctx, id); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return 0, ctxErr
				}
				c.logger.Warn("file transfer stalled", "peer", id, "file", info.Name, "error", err)
				delete(live, id)
				continue
			}
			if err := c.sendSealed(id, TypeFileChunk, chunk); err != nil {
				c.logger.Warn("file transfer interrupted", "peer", id, "file", info.Name, "error", err)
				delete(live, id)
			}
		}
	}

	delivered := 0
	for id := range live {
		if err := c.sendSealed(id, TypeFileDone, FileDonePayload{ID: meta.ID}); err == nil {
			delivered++
		}
	}

	if delivered > 0 {
		c.mu.Lock()
		c.stats.FilesSent++
		c.stats.BytesSent += info.Size * int64(delivered)
		c.mu.Unlock()
	}
	return delivered, nil
}

func transferKey(peerID, id string) string {
	return peerID + "/" + id
}

func (c *Client) handlePayload(ctx context.Context, peerID, payload string) {
	msg, err := Decode(payload)
	if err != nil {
		c.logger.Warn("dropping frame", "peer", peerID, "error", err)
		return
	}

	if msg.Type == TypeKeyExchange {
		c.handleKeyExchange(ctx, peerID, msg)
		return
	}

	c.mu.Lock()
	peer, ok := c.peers[peerID]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("frame before key exchange", "peer", peerID, "type", msg.Type)
		return
	}

	plain, err := peer.cipher.Open(msg.Payload)
	if err != nil {
		c.logger.Warn("cannot decrypt frame", "peer", peerID, "type", msg.Type, "error", err)
		return
	}
	msg.Payload = plain

	switch msg.Type {
	case TypeText:
		c.handleText(ctx, peerID, msg)
	case TypeFileMeta:
		c.handleFileMeta(ctx, peerID, msg)
	case TypeFileChunk:
		c.handleFileChunk(ctx, peerID, msg)
	case TypeFileDone:
		c.handleFileDone(ctx, peerID, msg)
	default:
		c.logger.Debug("ignoring unknown frame", "peer", peerID, "type", msg.Type)
	}
}

func (c *Client) handleKeyExchange(ctx context.Context, peerID string, msg Message) {
	var p KeyExchangePayload
	if err := msg.DecodePayload(&p); err != nil {
		c.logger.Warn("bad key exchange", "peer", peerID, "error", err)
		return
	}
	ciph, err := c.keys.Derive(p.PublicKey)
	if err != nil {
		c.logger.Warn("bad key exchange", "peer", peerID, "error", err)
		return
	}

	c.mu.Lock()
	c.peers[peerID] = &peerState{name: c.names[peerID], cipher: ciph}
	c.mu.Unlock()

	c.logger.Info("peer secured", "peer", peerID)
	c.emit(ctx, PeerSecured{PeerID: peerID, Name: c.PeerName(peerID)})
}

func (c *Client) handleText(ctx context.Context, peerID string, msg Message) {
	var p TextPayload
	if err := msg.DecodePayload(&p); err != nil {
		c.logger.Warn("bad text frame", "peer", peerID, "error", err)
		return
	}

	c.mu.Lock()
	c.stats.MessagesReceived++
	c.mu.Unlock()

	c.emit(ctx, TextReceived{
		PeerID: peerID,
		Name:   c.PeerName(peerID),
		Text:   p.Text,
		SentAt: time.UnixMilli(p.SentAt),
	})
}

func (c *Client) handleFileMeta(ctx context.Context, peerID string, msg Message) {
	var meta FileMetaPayload
	if err := msg.DecodePayload(&meta); err != nil {
		c.logger.Warn("bad file_meta frame", "peer", peerID, "error", err)
		return
	}
	if meta.Size > c.opts.MaxFileSize {
		c.emit(ctx, FileFailed{PeerID: peerID, Name: meta.Name, Err: files.ErrTooLarge})
		return
	}

	key := transferKey(peerID, meta.ID)
	if old, ok := c.incoming[key]; ok {
		old.abort()
	}
	in, err := newIncomingFile(c.opts.DownloadDir, meta)
	if err != nil {
		c.emit(ctx, FileFailed{PeerID: peerID, Name: meta.Name, Err: err})
		return
	}
	c.incoming[key] = in
	c.emit(ctx, FileOffered{PeerID: peerID, Name: meta.Name, Size: meta.Size})
}

func (c *Client) handleFileChunk(ctx context.Context, peerID string, msg Message) {
	var chunk FileChunkPayload
	if err := msg.DecodePayload(&chunk); err != nil {
		c.logger.Warn("bad file_chunk frame", "peer", peerID, "error", err)
		return
	}
	key := transferKey(peerID, chunk.ID)
	in, ok := c.incoming[key]
	if !ok {
		c.logger.Debug("chunk for unknown transfer", "peer", peerID, "id", chunk.ID)
		return
	}
	if err := in.write(chunk); err != nil {
		in.abort()
		delete(c.incoming, key)
		c.emit(ctx, FileFailed{PeerID: peerID, Name: in.meta.Name, Err: err})
	}
}

func (c *Client) handleFileDone(ctx context.Context, peerID string, msg Message) {
	var done FileDonePayload
	if err := msg.DecodePayload(&done); err != nil {
		c.logger.Warn("bad file_done frame", "peer", peerID, "error", err)
		return
	}
	key := transferKey(peerID, done.ID)
	in, ok := c.incoming[key]
	if !ok {
		c.emit(ctx, FileFailed{PeerID: peerID, Err: ErrUnknownTransfer})
		return
	}
	delete(c.incoming, key)

	if err := in.finish(); err != nil {
		os.Remove(in.path)
		c.emit(ctx, FileFailed{PeerID: peerID, Name: in.meta.Name, Err: err})
		return
	}

	c.mu.Lock()
	c.stats.FilesReceived++
	c.stats.BytesReceived += in.received
	c.mu.Unlock()

	c.emit(ctx, FileReceived{
		PeerID: peerID,
		Name:   c.PeerName(peerID),
		File:   in.meta.Name,
		Path:   in.path,
		Size:   in.received,
	})
}
