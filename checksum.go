package castor

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Checksum algorithms understood by the engine and the bundled backends.
const (
	AlgoMD5    = "md5"
	AlgoSHA1   = "sha1"
	AlgoSHA256 = "sha256"
)

// NewHasher returns a hash.Hash for a supported algorithm name.
func NewHasher(algo string) (hash.Hash, error) {
	switch algo {
	case AlgoMD5:
		return md5.New(), nil
	case AlgoSHA1:
		return sha1.New(), nil
	case AlgoSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// SumBytes hashes a byte slice and returns the hex digest.
func SumBytes(algo string, data []byte) (string, error) {
	h, err := NewHasher(algo)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumReader hashes a stream and returns the hex digest and byte count.
func SumReader(algo string, r io.Reader) (string, int64, error) {
	h, err := NewHasher(algo)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
