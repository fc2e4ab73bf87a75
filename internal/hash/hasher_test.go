package hash

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"blake2b", Blake2b, false},
		{"SHA256", SHA256, false},
		{" xxhash ", XXHash, false},
		{"", Blake2b, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAlgorithm) {
					t.Errorf("ParseAlgorithm(%q) err = %v, want ErrUnknownAlgorithm", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestHashFile_KnownDigests(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello world")
	path := writeFile(t, dir, "test.txt", content)

	b2 := blake2b.Sum256(content)
	xx := xxhash.Sum64(content)
	xxBytes := []byte{byte(xx >> 56), byte(xx >> 48), byte(xx >> 40), byte(xx >> 32), byte(xx >> 24), byte(xx >> 16), byte(xx >> 8), byte(xx)}

	tests := []struct {
		algo Algorithm
		want string
	}{
		{SHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{Blake2b, hex.EncodeToString(b2[:])},
		{XXHash, hex.EncodeToString(xxBytes)},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			h, err := NewHasher(WithAlgorithm(tt.algo))
			if err != nil {
				t.Fatalf("NewHasher failed: %v", err)
			}
			got, err := h.HashFile(path)
			if err != nil {
				t.Fatalf("HashFile failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HashFile = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHashFile_ChunkSizeDoesNotChangeDigest(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	path := writeFile(t, dir, "big.bin", content)

	var first string
	for _, size := range []int{1, 7, 4096, DefaultChunkSize} {
		h, err := NewHasher(WithChunkSize(size))
		if err != nil {
			t.Fatalf("NewHasher(%d) failed: %v", size, err)
		}
		got, err := h.HashFile(path)
		if err != nil {
			t.Fatalf("HashFile failed: %v", err)
		}
		if first == "" {
			first = got
			continue
		}
		if got != first {
			t.Errorf("chunk size %s changed digest: %s != %s", strconv.Itoa(size), got, first)
		}
	}
}

func TestHashFile_NonExistent(t *testing.T) {
	h, err := NewHasher()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.HashFile("/nonexistent/file.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestNewHasher_Invalid(t *testing.T) {
	if _, err := NewHasher(WithAlgorithm("md5")); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("err = %v, want ErrUnknownAlgorithm", err)
	}
	if _, err := NewHasher(WithChunkSize(0)); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

func TestHasher_Func(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", []byte("same"))
	b := writeFile(t, dir, "b", []byte("same"))
	c := writeFile(t, dir, "c", []byte("diff"))

	h, _ := NewHasher()
	fn := h.Func()
	da, _ := fn(a)
	db, _ := fn(b)
	dc, _ := fn(c)
	if da != db {
		t.Error("identical content should produce identical digests")
	}
	if da == dc {
		t.Error("different content should produce different digests")
	}
}
