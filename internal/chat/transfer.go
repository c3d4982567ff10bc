package chat

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/utils"
)

// ChunkSize is the plaintext size of one file_chunk frame.
const ChunkSize = 16 * 1024

var (
	ErrChunkOutOfOrder = errors.New("chunk out of order")
	ErrIntegrity       = errors.New("file integrity check failed")
	ErrUnknownTransfer = errors.New("unknown transfer")
)

func chunkCount(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

// digestFile hashes a file ahead of sending.
func digestFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// incomingFile streams one received file to disk, hashing as it goes.
type incomingFile struct {
	meta     FileMetaPayload
	path     string
	file     *os.File
	hash     hash.Hash
	next     int
	received int64
}

func newIncomingFile(dir string, meta FileMetaPayload) (*incomingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	name := filepath.Base(filepath.Clean("/" + meta.Name))
	if name == "/" || name == "." {
		name = "download"
	}
	path := utils.UniqueFilename(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &incomingFile{meta: meta, path: path, file: f, hash: sha256.New()}, nil
}

func (in *incomingFile) write(chunk FileChunkPayload) error {
	if chunk.Index != in.next {
		return fmt.Errorf("%w: got %d, want %d", ErrChunkOutOfOrder, chunk.Index, in.next)
	}
	if _, err := in.file.Write(chunk.Bytes); err != nil {
		return err
	}
	in.hash.Write(chunk.Bytes)
	in.next++
	in.received += int64(len(chunk.Bytes))
	return nil
}

// finish closes the file and checks chunk count, size and digest.
func (in *incomingFile) finish() error {
	if err := in.file.Close(); err != nil {
		return err
	}
	if in.next != in.meta.Chunks || in.received != in.meta.Size {
		return fmt.Errorf("%w: %d/%d chunks, %d/%d bytes", ErrIntegrity, in.next, in.meta.Chunks, in.received, in.meta.Size)
	}
	if !bytes.Equal(in.hash.Sum(nil), in.meta.SHA256) {
		return fmt.Errorf("%w: sha-256 mismatch", ErrIntegrity)
	}
	return nil
}

// abort drops a partial file.
func (in *incomingFile) abort() {
	in.file.Close()
	os.Remove(in.path)
}
