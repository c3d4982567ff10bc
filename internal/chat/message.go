package chat

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message types carried on a mesh channel.
const (
	TypeKeyExchange = "key_exchange"
	TypeText        = "text"
	TypeFileMeta    = "file_meta"
	TypeFileChunk   = "file_chunk"
	TypeFileDone    = "file_done"
)

var ErrMalformedFrame = errors.New("malformed chat frame")

// Message is one frame. For every type except key_exchange the payload is
// sealed with the pair's key before it is stored here.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload []byte `msgpack:"payload"`
}

// KeyExchangePayload carries an uncompressed P-256 public key.
type KeyExchangePayload struct {
	PublicKey []byte `msgpack:"publicKey"`
}

type TextPayload struct {
	Text   string `msgpack:"text"`
	SentAt int64  `msgpack:"sentAt"`
}

// FileMetaPayload announces a file. SHA256 covers the whole plaintext.
type FileMetaPayload struct {
	ID     string `msgpack:"id"`
	Name   string `msgpack:"name"`
	Size   int64  `msgpack:"size"`
	Type   string `msgpack:"type"`
	Chunks int    `msgpack:"chunks"`
	SHA256 []byte `msgpack:"sha256"`
}

type FileChunkPayload struct {
	ID    string `msgpack:"id"`
	Index int    `msgpack:"index"`
	Bytes []byte `msgpack:"bytes"`
}

type FileDonePayload struct {
	ID string `msgpack:"id"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Encode renders a frame as base64 text for the channel.
func Encode(m Message) (string, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding %s frame: %w", m.Type, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Decode parses a frame produced by Encode.
func Decode(s string) (Message, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	var m Message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return m, nil
}
