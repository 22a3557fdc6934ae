// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package archive

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/tenantvault/internal/faults"
)

// IVSize is the length of the IV prefix on encrypted archives.
const IVSize = aes.BlockSize

// Options configures a Codec.
type Options struct {
	// Secret enables encryption when non-empty. The AES key is SHA-256(Secret).
	Secret string
	// Level is the gzip level; 0 means gzip.DefaultCompression.
	Level int
}

// Result is the output of Encode.
type Result struct {
	Data           []byte
	Checksum       string
	CompressedSize int64
	Encrypted      bool
}

// Codec encodes and decodes backup archives. It is safe for concurrent use.
type Codec struct {
	key   []byte
	level int
	rand  io.Reader
}

// New creates a Codec.
func New(opts Options) (*Codec, error) {
	level := opts.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid gzip level %d", level)
	}

	c := &Codec{level: level, rand: rand.Reader}
	if opts.Secret != "" {
		sum := sha256.Sum256([]byte(opts.Secret))
		c.key = sum[:]
	}
	return c, nil
}

// Encrypted reports whether archives produced by this codec are encrypted.
func (c *Codec) Encrypted() bool {
	return c.key != nil
}

// Encode compresses and, if configured, encrypts raw.
func (c *Codec) Encode(raw []byte) (*Result, error) {
	compressed, err := c.compress(raw)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Checksum:       Checksum(compressed),
		CompressedSize: int64(len(compressed)),
	}

	if c.key == nil {
		res.Data = compressed
		return res, nil
	}

	data, err := c.encrypt(compressed)
	if err != nil {
		return nil, err
	}
	res.Data = data
	res.Encrypted = true
	return res, nil
}

// Decode reverses Encode. encrypted must be the flag stored with the artifact.
func (c *Codec) Decode(data []byte, expectedChecksum string, encrypted bool) ([]byte, error) {
	compressed := data
	if encrypted {
		if c.key == nil {
			return nil, faults.Integrity("archive is encrypted but no key is configured", nil)
		}
		var err error
		if compressed, err = c.decrypt(data); err != nil {
			return nil, faults.Integrity("decryption failed", err)
		}
	}

	if !VerifyChecksum(compressed, expectedChecksum) {
		return nil, faults.Integrity(fmt.Sprintf("checksum mismatch: expected %s, got %s", expectedChecksum, Checksum(compressed)), nil)
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, faults.Integrity("decompression failed", err)
	}
	return raw, nil
}

// Checksum returns the hex SHA-256 of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares the checksum of b with expected in constant time.
func VerifyChecksum(b []byte, expected string) bool {
	got := Checksum(b)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func (c *Codec) compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close() //nolint:errcheck // Reader close has nothing to flush

	return io.ReadAll(zr)
}

func (c *Codec) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, fmt.Errorf("generate IV: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return out, nil
}

func (c *Codec) decrypt(data []byte) ([]byte, error) {
	if len(data) < IVSize+aes.BlockSize || (len(data)-IVSize)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext has invalid length")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	iv := data[:IVSize]
	plain := make([]byte, len(data)-IVSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data[IVSize:])
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
