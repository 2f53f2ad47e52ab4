// Package crypto seals database backups with a passphrase.
package crypto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeMagic   = "TCRMBAK1"
	envelopeVersion = 1
	maxHeaderLen    = 4096
)

var ErrNotEnvelope = errors.New("not an encrypted backup")

// Header is stored in clear ahead of the ciphertext and authenticated as
// associated data.
type Header struct {
	Version   int          `json:"version"`
	KDF       string       `json:"kdf"`
	Params    Argon2Params `json:"params"`
	Salt      []byte       `json:"salt"`
	Nonce     []byte       `json:"nonce"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsEnvelope reports whether data starts with the envelope magic.
func IsEnvelope(data []byte) bool {
	return bytes.HasPrefix(data, []byte(envelopeMagic))
}

// Seal encrypts plaintext under a key derived from passphrase. The layout is
// magic, big-endian uint32 header length, JSON header, ciphertext.
func Seal(passphrase, plaintext []byte, params Argon2Params, now time.Time) ([]byte, error) {
	salt, err := randomBytes(DefaultArgon2SaltLen)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	nonce, err := randomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	header := Header{
		Version:   envelopeVersion,
		KDF:       "argon2id",
		Params:    params,
		Salt:      salt,
		Nonce:     nonce,
		CreatedAt: now.UTC(),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("seal: encode header: %w", err)
	}

	key, err := DeriveKey(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	defer memguard.WipeBytes(key)

	ciphertext, err := seal(key, nonce, plaintext, headerJSON)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(envelopeMagic) + 4 + len(headerJSON) + len(ciphertext))
	buf.WriteString(envelopeMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(headerJSON)))
	buf.Write(headerJSON)
	buf.Write(ciphertext)
	return buf.Bytes(), nil
}

// Open reverses Seal. A wrong passphrase yields ErrAuthenticationFailed.
func Open(passphrase, envelope []byte) ([]byte, Header, error) {
	header, headerJSON, ciphertext, err := parseEnvelope(envelope)
	if err != nil {
		return nil, Header{}, err
	}

	key, err := DeriveKey(passphrase, header.Salt, header.Params)
	if err != nil {
		return nil, Header{}, fmt.Errorf("open: %w", err)
	}
	defer memguard.WipeBytes(key)

	plaintext, err := open(key, header.Nonce, ciphertext, headerJSON)
	if err != nil {
		return nil, Header{}, fmt.Errorf("open: %w", err)
	}
	return plaintext, header, nil
}

func parseEnvelope(envelope []byte) (Header, []byte, []byte, error) {
	if !IsEnvelope(envelope) {
		return Header{}, nil, nil, ErrNotEnvelope
	}
	rest := envelope[len(envelopeMagic):]
	if len(rest) < 4 {
		return Header{}, nil, nil, fmt.Errorf("%w: truncated header length", ErrNotEnvelope)
	}
	headerLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if headerLen == 0 || headerLen > maxHeaderLen || int(headerLen) > len(rest) {
		return Header{}, nil, nil, fmt.Errorf("%w: bad header length %d", ErrNotEnvelope, headerLen)
	}

	headerJSON := rest[:headerLen]
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, nil, fmt.Errorf("%w: decode header: %v", ErrNotEnvelope, err)
	}
	if header.Version != envelopeVersion || header.KDF != "argon2id" {
		return Header{}, nil, nil, fmt.Errorf("%w: unsupported version %d kdf %q", ErrNotEnvelope, header.Version, header.KDF)
	}
	return header, headerJSON, rest[headerLen:], nil
}
