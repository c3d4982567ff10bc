package chat

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize = 12
	keySize   = 32
)

var hkdfInfo = []byte("warpmesh chat v1")

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrInvalidPublicKey   = errors.New("invalid peer public key")
)

// KeyPair is this member's ECDH identity for one session.
type KeyPair struct {
	priv *ecdh.PrivateKey
}

func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// PublicKey returns the uncompressed point, the same bytes WebCrypto
// exports as "raw".
func (k *KeyPair) PublicKey() []byte {
	return k.priv.PublicKey().Bytes()
}

// Derive computes the pair cipher from the peer's public key. Both sides
// arrive at the same key: the HKDF salt is the two public keys in
// lexical order.
func (k *KeyPair) Derive(peerPublic []byte) (*Cipher, error) {
	pub, err := ecdh.P256().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	secret, err := k.priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	own := k.PublicKey()
	salt := make([]byte, 0, len(own)+len(peerPublic))
	if bytes.Compare(own, peerPublic) < 0 {
		salt = append(append(salt, own...), peerPublic...)
	} else {
		salt = append(append(salt, peerPublic...), own...)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return newCipher(key)
}

// Cipher seals payloads with AES-256-GCM as iv(12) || ciphertext.
type Cipher struct {
	aead cipher.AEAD
}

func newCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
}
