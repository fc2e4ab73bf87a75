package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	stdhash "hash"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a content digest.
type Algorithm string

const (
	Blake2b Algorithm = "blake2b"
	SHA256  Algorithm = "sha256"
	XXHash  Algorithm = "xxhash"
)

// DefaultChunkSize is the read size used when streaming a file.
const DefaultChunkSize = 1 << 20

// ErrUnknownAlgorithm is returned for an unsupported digest name.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithms lists the supported digests.
func Algorithms() []Algorithm {
	return []Algorithm{Blake2b, SHA256, XXHash}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case Blake2b, SHA256, XXHash:
		return a, nil
	case "":
		return Blake2b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// New returns a fresh digest state for the algorithm.
func (a Algorithm) New() (stdhash.Hash, error) {
	switch a {
	case Blake2b:
		return blake2b.New256(nil)
	case SHA256:
		return sha256.New(), nil
	case XXHash:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// Func computes the digest of the file at path.
type Func func(path string) (string, error)

// Hasher streams files through a digest in fixed-size chunks.
type Hasher struct {
	algorithm Algorithm
	chunkSize int
	buffers   sync.Pool
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithAlgorithm selects the digest algorithm.
func WithAlgorithm(a Algorithm) Option {
	return func(h *Hasher) {
		h.algorithm = a
	}
}

// WithChunkSize sets the read size in bytes.
func WithChunkSize(n int) Option {
	return func(h *Hasher) {
		h.chunkSize = n
	}
}

// NewHasher creates a Hasher. The default is blake2b with 1 MiB chunks.
func NewHasher(opts ...Option) (*Hasher, error) {
	h := &Hasher{
		algorithm: Blake2b,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(h)
	}

	if _, err := h.algorithm.New(); err != nil {
		return nil, err
	}
	if h.chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", h.chunkSize)
	}

	size := h.chunkSize
	h.buffers.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return h, nil
}

// Algorithm returns the configured digest algorithm.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// HashFile returns the hex digest of the file contents.
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return h.HashReader(file)
}

// HashReader returns the hex digest of everything read from r.
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	d, err := h.algorithm.New()
	if err != nil {
		return "", err
	}

	bufPtr := h.buffers.Get().(*[]byte)
	defer h.buffers.Put(bufPtr)

	// Plain Reader wrapper keeps io.CopyBuffer from bypassing the chunked reads.
	if _, err := io.CopyBuffer(d, struct{ io.Reader }{r}, *bufPtr); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// Func returns HashFile as a Func.
func (h *Hasher) Func() Func {
	return h.HashFile
}
