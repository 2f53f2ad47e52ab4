package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
)

const (
	DefaultArgon2MemoryKiB  uint32 = 64 * 1024
	DefaultArgon2Iterations uint32 = 3
	DefaultArgon2SaltLen           = 32
	KeyLen                  uint32 = 32
	MinArgon2MemoryKiB      uint32 = 8 * 1024
)

var ErrInvalidArgon2Params = errors.New("invalid argon2 parameters")

// Argon2Params are stored in each envelope header so older backups still
// open after the defaults change.
type Argon2Params struct {
	Memory      uint32 `json:"memory_kib"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

func DefaultArgon2Params() Argon2Params {
	parallelism := min(runtime.NumCPU(), 4)
	if parallelism < 1 {
		parallelism = 1
	}
	return Argon2Params{
		Memory:      DefaultArgon2MemoryKiB,
		Iterations:  DefaultArgon2Iterations,
		Parallelism: uint8(parallelism),
	}
}

func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < MinArgon2MemoryKiB:
		return fmt.Errorf("%w: memory must be >= %d KiB", ErrInvalidArgon2Params, MinArgon2MemoryKiB)
	case p.Iterations == 0:
		return fmt.Errorf("%w: iterations must be > 0", ErrInvalidArgon2Params)
	case p.Parallelism == 0:
		return fmt.Errorf("%w: parallelism must be > 0", ErrInvalidArgon2Params)
	default:
		return nil
	}
}

// DeriveKey stretches a passphrase into an AEAD key with Argon2id.
func DeriveKey(passphrase, salt []byte, params Argon2Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase must not be empty", ErrInvalidArgon2Params)
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("%w: salt must be at least 16 bytes", ErrInvalidArgon2Params)
	}
	return argon2.IDKey(passphrase, salt, params.Iterations, params.Memory, params.Parallelism, KeyLen), nil
}

func randomBytes(size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return out, nil
}
