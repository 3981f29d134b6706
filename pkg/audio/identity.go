package audio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentIdentity returns the stable fingerprint of the audio bytes at
// path: the lowercase hex SHA-256 of the file contents. Identical audio
// re-uploaded under a different name yields the same identity, which is
// what makes cached pipeline results reusable across uploads.
func ContentIdentity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("audio: hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
