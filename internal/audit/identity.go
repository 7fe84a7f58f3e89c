package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// IdentityMatch represents the result of identity verification.
type IdentityMatch int

const (
	IdentityMatches IdentityMatch = iota
	IdentityHashMismatch
	IdentitySizeMismatch
	IdentityNotFound
)

func (m IdentityMatch) String() string {
	switch m {
	case IdentityMatches:
		return "MATCH"
	case IdentityHashMismatch:
		return "HASH_MISMATCH"
	case IdentitySizeMismatch:
		return "SIZE_MISMATCH"
	default:
		return "NOT_FOUND"
	}
}

// CaptureIdentity computes the content hash, size and modification time of path.
func CaptureIdentity(path string) (*FileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file")
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &FileIdentity{
		ContentHash: hash,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// CompareFiles checks that candidate has the same size and content as reference.
func CompareFiles(reference, candidate string) (IdentityMatch, error) {
	want, err := CaptureIdentity(reference)
	if err != nil {
		return IdentityNotFound, err
	}
	return VerifyIdentity(candidate, *want)
}

// VerifyIdentity compares the file at path against an expected identity.
// Size is checked first; the hash is only computed when sizes agree.
func VerifyIdentity(path string, expected FileIdentity) (IdentityMatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return IdentityNotFound, nil
		}
		return IdentityNotFound, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() != expected.Size {
		return IdentitySizeMismatch, nil
	}

	hash, err := HashFile(path)
	if err != nil {
		return IdentityNotFound, fmt.Errorf("failed to compute hash: %w", err)
	}
	if hash != expected.ContentHash {
		return IdentityHashMismatch, nil
	}
	return IdentityMatches, nil
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
