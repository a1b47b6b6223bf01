package plugin

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// trustStampFile returns a hex blake2b-256 digest of path's contents, used
// to stamp dynamically loaded plugin records with a content identity an
// operator can diff against a known-good value. The registry does not
// enforce a trust decision at load time; the stamp is introspection only.
func trustStampFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("plugin: trust stamp: %w", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("plugin: trust stamp: %w", err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("plugin: trust stamp: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
