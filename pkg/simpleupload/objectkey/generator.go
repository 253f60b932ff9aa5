// Package objectkey derives object-store keys for uploads.
package objectkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Generator defines the interface for object key generation strategies.
type Generator interface {
	// GenerateKey creates an object key under the given media-type prefix.
	GenerateKey(prefix, filename string) string
}

// PrefixedGenerator produces keys of the form
// <prefix>/<random token>_<sanitized filename>, e.g.
// video/3f2a9c1b44de_clip.mp4. The random token makes collisions
// practically impossible without a uniqueness check against the store.
type PrefixedGenerator struct {
	// TokenBytes controls the length of the random token (default: 6,
	// rendered as 12 hex characters).
	TokenBytes int
}

// NewPrefixedGenerator returns a generator with the default token length.
func NewPrefixedGenerator() *PrefixedGenerator {
	return &PrefixedGenerator{TokenBytes: 6}
}

func (g *PrefixedGenerator) GenerateKey(prefix, filename string) string {
	n := g.TokenBytes
	if n <= 0 {
		n = 6
	}
	token := make([]byte, n)
	// rand.Read on crypto/rand never fails on supported platforms.
	_, _ = rand.Read(token)

	return fmt.Sprintf("%s/%s_%s", prefix, hex.EncodeToString(token), sanitizeFilename(filename))
}

// CustomFuncGenerator allows callers to provide their own key derivation.
type CustomFuncGenerator struct {
	GenerateFunc func(prefix, filename string) string
}

func (g *CustomFuncGenerator) GenerateKey(prefix, filename string) string {
	return g.GenerateFunc(prefix, filename)
}

// sanitizeFilename replaces characters that are problematic in object keys.
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
