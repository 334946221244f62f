// Package contenthash computes the content digests used to deduplicate
// fragment artifacts across sinks.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hash is a lowercase hex-encoded SHA-256 digest.
type Hash string

// String returns the hex digest.
func (h Hash) String() string { return string(h) }

// Short returns the first 12 characters for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Reader streams r through SHA-256. Read errors are returned unchanged.
func Reader(r io.Reader) (Hash, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return Hash(hex.EncodeToString(hasher.Sum(nil))), nil
}

// File hashes the file at path without loading it into memory.
func File(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	h, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return h, nil
}

// Bytes hashes an in-memory buffer.
func Bytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}
