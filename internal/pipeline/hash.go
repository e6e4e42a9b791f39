package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/household-docs/constants"
)

// ContentKey hashes a file's bytes. The extension is part of the key since
// extraction depends on it.
func ContentKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return constants.NormalizeExt(filepath.Ext(path)) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
