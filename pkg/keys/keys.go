// Package keys derives the lookup keys under which compiled templates are
// registered and referenced.
//
// In development mode a key is the normalized path of the template, which
// keeps generated bundles readable. In production mode it is the lower-case
// hex SHA-256 digest of that path, which keeps the filesystem layout out of
// shipped code. The same deriver keys both the rewritten references inside a
// template and the registration of the template itself, so the two always
// agree.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Mode selects how keys are derived.
type Mode string

const (
	// Development derives keys equal to the normalized path.
	Development Mode = "development"

	// Production derives keys as hex SHA-256 digests of the normalized path.
	Production Mode = "production"
)

// ParseMode parses a mode name. The empty string selects Development.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Development:
		return Development, nil
	case Production:
		return Production, nil
	}
	return "", fmt.Errorf("invalid mode %q (valid modes: development, production)", s)
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// extendedPrefix marks Windows extended-length paths, which must keep their
// backslashes.
const extendedPrefix = `\\?\`

// Normalize converts path separators to forward slashes.
func Normalize(path string) string {
	if strings.HasPrefix(path, extendedPrefix) {
		return path
	}
	return strings.ReplaceAll(path, `\`, "/")
}

// Func maps a normalized path to a key.
type Func func(path string) string

// Deriver derives keys for one mode.
type Deriver struct {
	mode Mode
}

// NewDeriver creates a deriver for mode.
func NewDeriver(mode Mode) *Deriver {
	return &Deriver{mode: mode}
}

// Mode returns the mode of the deriver.
func (d *Deriver) Mode() Mode {
	return d.mode
}

// Key returns the key for path. path is expected to be normalized already;
// callers that hold raw paths use PathKey.
func (d *Deriver) Key(path string) string {
	if d.mode != Production {
		return path
	}
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// PathKey normalizes path and returns its key.
func (d *Deriver) PathKey(path string) string {
	return d.Key(Normalize(path))
}

// Func returns Key as a Func.
func (d *Deriver) Func() Func {
	return d.Key
}
