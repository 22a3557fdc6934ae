// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package archive

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/tomtom215/tenantvault/internal/faults"
)

func newTestCodec(t *testing.T, secret string) *Codec {
	t.Helper()
	c, err := New(Options{Secret: secret})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	big := make([]byte, 256*1024)
	if _, err := rand.Read(big); err != nil {
		t.Fatal(err)
	}

	payloads := map[string][]byte{
		"empty":      {},
		"one byte":   {0x42},
		"block size": bytes.Repeat([]byte("a"), 16),
		"sql":        []byte("CREATE SCHEMA tenant_t1;\nCREATE TABLE tenant_t1.users (id uuid);\n"),
		"random":     big,
	}

	for _, secret := range []string{"", "correct horse battery staple"} {
		codec := newTestCodec(t, secret)
		for name, payload := range payloads {
			res, err := codec.Encode(payload)
			if err != nil {
				t.Fatalf("%s: Encode() error = %v", name, err)
			}
			if res.Encrypted != (secret != "") {
				t.Errorf("%s: Encrypted = %v", name, res.Encrypted)
			}
			got, err := codec.Decode(res.Data, res.Checksum, res.Encrypted)
			if err != nil {
				t.Fatalf("%s: Decode() error = %v", name, err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("%s (secret=%v): round trip mismatch", name, secret != "")
			}
		}
	}
}

func TestChecksumCoversCompressedPlaintext(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "s3cret")
	res, err := codec.Encode([]byte("hello tenant"))
	if err != nil {
		t.Fatal(err)
	}

	compressed, err := codec.decrypt(res.Data)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if Checksum(compressed) != res.Checksum {
		t.Error("checksum should be computed over the compressed bytes before encryption")
	}
	if int64(len(compressed)) != res.CompressedSize {
		t.Errorf("CompressedSize = %d, want %d", res.CompressedSize, len(compressed))
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("decrypted payload is not gzip: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if string(plain) != "hello tenant" {
		t.Errorf("plain = %q", plain)
	}
}

func TestEncryptedLayoutHasFreshIV(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "s3cret")
	a, _ := codec.Encode([]byte("same input"))
	b, _ := codec.Encode([]byte("same input"))

	if bytes.Equal(a.Data[:IVSize], b.Data[:IVSize]) {
		t.Error("two archives share an IV")
	}
	if (len(a.Data)-IVSize)%16 != 0 {
		t.Errorf("ciphertext length %d is not block aligned", len(a.Data)-IVSize)
	}
}

func TestBitFlipIsIntegrityError(t *testing.T) {
	t.Parallel()

	for _, secret := range []string{"", "k"} {
		codec := newTestCodec(t, secret)
		payload := []byte("COPY tenant_t1.grades (id, score) FROM stdin;\n1\t90\n\\.\n")
		res, err := codec.Encode(payload)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < len(res.Data)*8; i++ {
			corrupt := append([]byte(nil), res.Data...)
			corrupt[i/8] ^= 1 << (i % 8)

			got, err := codec.Decode(corrupt, res.Checksum, res.Encrypted)
			if err == nil {
				t.Fatalf("secret=%q bit %d: Decode() succeeded on corrupted archive", secret, i)
			}
			if got != nil {
				t.Fatalf("bit %d: corrupted bytes returned", i)
			}
			if !errors.Is(err, faults.ErrIntegrity) {
				t.Fatalf("bit %d: error %v is not an IntegrityError", i, err)
			}
		}
	}
}

func TestDecode_KeyProblems(t *testing.T) {
	t.Parallel()

	enc := newTestCodec(t, "right")
	res, _ := enc.Encode([]byte("payload"))

	tests := []struct {
		name  string
		codec *Codec
	}{
		{"missing key", newTestCodec(t, "")},
		{"wrong key", newTestCodec(t, "wrong")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(res.Data, res.Checksum, true)
			var ie *faults.IntegrityError
			if !errors.As(err, &ie) {
				t.Errorf("Decode() error = %v, want IntegrityError", err)
			}
		})
	}
}

func TestDecode_UsesStoredFlag(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, "k")
	plain := newTestCodec(t, "")
	res, _ := plain.Encode([]byte("gzip only"))

	got, err := codec.Decode(res.Data, res.Checksum, false)
	if err != nil || string(got) != "gzip only" {
		t.Errorf("Decode(encrypted=false) = %q, %v", got, err)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Level: 12}); err == nil {
		t.Error("expected error for gzip level 12")
	}
}
