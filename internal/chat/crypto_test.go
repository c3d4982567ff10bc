package chat

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func pairCiphers(t *testing.T) (*Cipher, *Cipher) {
	t.Helper()
	alice, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	bob, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a, err := alice.Derive(bob.PublicKey())
	if err != nil {
		t.Fatalf("alice derive: %v", err)
	}
	b, err := bob.Derive(alice.PublicKey())
	if err != nil {
		t.Fatalf("bob derive: %v", err)
	}
	return a, b
}

func TestCipherRoundTrip(t *testing.T) {
	a, b := pairCiphers(t)

	sealed, err := a.Seal([]byte("hello mesh"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sealed) != nonceSize+len("hello mesh")+16 {
		t.Fatalf("sealed length = %d", len(sealed))
	}

	plain, err := b.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(plain) != "hello mesh" {
		t.Fatalf("Open = %q", plain)
	}
}

func TestCipherUsesFreshNonces(t *testing.T) {
	a, _ := pairCiphers(t)
	x, _ := a.Seal([]byte("same"))
	y, _ := a.Seal([]byte("same"))
	if bytes.Equal(x[:nonceSize], y[:nonceSize]) {
		t.Fatal("nonce reused")
	}
}

func TestCipherRejectsTampering(t *testing.T) {
	a, b := pairCiphers(t)
	sealed, _ := a.Seal([]byte("secret"))
	sealed[len(sealed)-1] ^= 0xff

	if _, err := b.Open(sealed); err == nil {
		t.Fatal("tampered ciphertext accepted")
	}
	if _, err := b.Open(sealed[:5]); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("short input error = %v", err)
	}
}

func TestCipherRejectsThirdParty(t *testing.T) {
	a, _ := pairCiphers(t)
	_, eve := pairCiphers(t)
	sealed, _ := a.Seal([]byte("secret"))
	if _, err := eve.Open(sealed); err == nil {
		t.Fatal("foreign key opened the message")
	}
}

func TestDeriveRejectsBadKey(t *testing.T) {
	k, _ := GenerateKeyPair()
	if _, err := k.Derive([]byte{4, 1, 2, 3}); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("err = %v, want ErrInvalidPublicKey", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeText, TextPayload{Text: "hi", SentAt: 42})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := Encode(msg)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != TypeText {
		t.Fatalf("type = %q", got.Type)
	}
	var p TextPayload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatal(err)
	}
	if p.Text != "hi" || p.SentAt != 42 {
		t.Fatalf("payload = %+v", p)
	}
}

func TestSealedFrameRoundTrip(t *testing.T) {
	a, b := pairCiphers(t)

	for i := 0; i < 50; i++ {
		want := FileChunkPayload{ID: "f1", Index: i, Bytes: bytes.Repeat([]byte{byte(i)}, 100+i*37)}
		msg, err := NewMessage(TypeFileChunk, want)
		if err != nil {
			t.Fatal(err)
		}
		if msg.Payload, err = a.Seal(msg.Payload); err != nil {
			t.Fatal(err)
		}
		frame, err := Encode(msg)
		if err != nil {
			t.Fatal(err)
		}

		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("frame %d: Decode: %v", i, err)
		}
		if got.Payload, err = b.Open(got.Payload); err != nil {
			t.Fatalf("frame %d: Open: %v", i, err)
		}
		var chunk FileChunkPayload
		if err := got.DecodePayload(&chunk); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if chunk.Index != i || !bytes.Equal(chunk.Bytes, want.Bytes) {
			t.Fatalf("frame %d: got index %d with %d bytes", i, chunk.Index, len(chunk.Bytes))
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"not base64!", "aGVsbG8=", ""} {
		if _, err := Decode(in); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedFrame", in, err)
		}
	}
}

func TestIncomingFileChecks(t *testing.T) {
	data := bytes.Repeat([]byte("x"), ChunkSize+10)
	meta := FileMetaPayload{ID: "f1", Name: "../../etc/passwd", Size: int64(len(data)), Chunks: chunkCount(int64(len(data)))}

	t.Run("out of order", func(t *testing.T) {
		in, err := newIncomingFile(t.TempDir(), meta)
		if err != nil {
			t.Fatal(err)
		}
		defer in.abort()
		if err := in.write(FileChunkPayload{ID: "f1", Index: 1, Bytes: data[ChunkSize:]}); !errors.Is(err, ErrChunkOutOfOrder) {
			t.Fatalf("err = %v, want ErrChunkOutOfOrder", err)
		}
	})

	t.Run("digest mismatch", func(t *testing.T) {
		dir := t.TempDir()
		in, err := newIncomingFile(dir, meta)
		if err != nil {
			t.Fatal(err)
		}
		if in.path != filepath.Join(dir, "passwd") {
			t.Fatalf("path = %q, want name confined to %s", in.path, dir)
		}
		in.write(FileChunkPayload{Index: 0, Bytes: data[:ChunkSize]})
		in.write(FileChunkPayload{Index: 1, Bytes: data[ChunkSize:]})
		if err := in.finish(); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("err = %v, want ErrIntegrity", err)
		}
	})
}
