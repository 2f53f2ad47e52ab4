package crypto

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fastParams = Argon2Params{Memory: MinArgon2MemoryKiB, Iterations: 1, Parallelism: 1}

func TestArgon2KAT(t *testing.T) {
	t.Parallel()

	passphrase := []byte("correct horse battery staple")
	salt := []byte("0123456789abcdef0123456789abcdef")
	params := Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 1,
	}

	got, err := DeriveKey(passphrase, salt, params)
	require.NoError(t, err)
	require.Equal(t, mustDecodeHex(t, "d12ac228e1566ecd9f80cf05621657ee1b5b34e40133438917d7ed334641f455"), got)
}

func TestXChaCha20Poly1305KAT(t *testing.T) {
	t.Parallel()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	nonce := make([]byte, 24)
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}

	got, err := seal(key, nonce, []byte("tailorcrm-xchacha20poly1305-kat"), []byte("backup:test-header"))
	require.NoError(t, err)
	require.Equal(t, mustDecodeHex(t, "c89a3bf6c46edb415825cfca0411a57b6cff365e65ae81e8327c01b0deb7dc45fa5bee5d43432d9d603573a4215055"), got)
}

func TestDeriveKeyRejectsBadInput(t *testing.T) {
	t.Parallel()

	salt := make([]byte, 32)
	_, err := DeriveKey(nil, salt, fastParams)
	require.ErrorIs(t, err, ErrInvalidArgon2Params)
	_, err = DeriveKey([]byte("pw"), salt[:8], fastParams)
	require.ErrorIs(t, err, ErrInvalidArgon2Params)
	_, err = DeriveKey([]byte("pw"), salt, Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1})
	require.ErrorIs(t, err, ErrInvalidArgon2Params)
	require.NoError(t, DefaultArgon2Params().Validate())
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	plaintext := []byte("SQLite format 3\x00 customers and orders")

	envelope, err := Seal([]byte("shop-passphrase"), plaintext, fastParams, now)
	require.NoError(t, err)
	require.True(t, IsEnvelope(envelope))
	require.NotContains(t, string(envelope), "customers and orders")

	got, header, err := Open([]byte("shop-passphrase"), envelope)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
	require.Equal(t, now, header.CreatedAt)
	require.Equal(t, fastParams, header.Params)
	require.Len(t, header.Salt, DefaultArgon2SaltLen)
}

func TestOpenWithWrongPassphraseFails(t *testing.T) {
	t.Parallel()

	envelope, err := Seal([]byte("right"), []byte("data"), fastParams, time.Now())
	require.NoError(t, err)

	_, _, err = Open([]byte("wrong"), envelope)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestOpenDetectsTampering(t *testing.T) {
	t.Parallel()

	envelope, err := Seal([]byte("pw"), []byte("data"), fastParams, time.Now())
	require.NoError(t, err)

	body := append([]byte(nil), envelope...)
	body[len(body)-1] ^= 0xff
	_, _, err = Open([]byte("pw"), body)
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	// The header is associated data, so editing it breaks authentication too.
	header := append([]byte(nil), envelope...)
	idx := len(envelopeMagic) + 4 + len(`{"version":1,"kdf":"argon2id","params":{"memory_kib":`)
	header[idx] = '9'
	_, _, err = Open([]byte("pw"), header)
	require.Error(t, err)
}

func TestOpenRejectsNonEnvelope(t *testing.T) {
	t.Parallel()

	_, _, err := Open([]byte("pw"), []byte("SQLite format 3\x00"))
	require.ErrorIs(t, err, ErrNotEnvelope)

	_, _, err = Open([]byte("pw"), []byte(envelopeMagic+"\x00\x00"))
	require.ErrorIs(t, err, ErrNotEnvelope)

	_, _, err = Open([]byte("pw"), []byte(envelopeMagic+"\x00\x00\xff\xff{}"))
	require.ErrorIs(t, err, ErrNotEnvelope)
}

func BenchmarkDeriveKey(b *testing.B) {
	params := DefaultArgon2Params()
	passphrase := []byte("correct horse battery staple")
	salt, err := randomBytes(DefaultArgon2SaltLen)
	if err != nil {
		b.Fatalf("generate salt: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DeriveKey(passphrase, salt, params); err != nil {
			b.Fatalf("derive key: %v", err)
		}
	}
}

func mustDecodeHex(t *testing.T, value string) []byte {
	t.Helper()
	out, err := hex.DecodeString(value)
	require.NoError(t, err)
	return out
}
