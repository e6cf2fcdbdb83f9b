// Package key implements the deterministic mapping from a (kind, guid, hash)
// tuple to the cache key addressing scheme used by every engine backend.
package key

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the role a file plays within a version.
type Kind byte

const (
	// KindInfo is the information blob.
	KindInfo Kind = 'i'
	// KindAsset is the asset/binary blob.
	KindAsset Kind = 'a'
	// KindResource is the optional resource blob.
	KindResource Kind = 'r'
)

// String renders the kind as its single-character wire form.
func (k Kind) String() string {
	return string(rune(k))
}

// Valid reports whether k is one of the three defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindAsset, KindResource:
		return true
	default:
		return false
	}
}

// ParseKind validates a single-character kind string from the wire.
func ParseKind(s string) (Kind, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: kind must be a single character, got %q", ErrInvalidKind, s)
	}
	k := Kind(s[0])
	if !k.Valid() {
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidKind, s)
	}
	return k, nil
}

// GUID is a 16-byte opaque identifier for a logical asset.
type GUID [16]byte

// Hash is a 16-byte content digest accompanying a GUID.
type Hash [16]byte

// String renders the GUID as lowercase hex, matching dittofs's convention of
// hex-encoding fixed-size identifiers for logging and path derivation.
func (g GUID) String() string {
	return hex.EncodeToString(g[:])
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// NewGUID generates a random GUID backed by google/uuid, which already
// produces a 16-byte random identifier in the shape this system needs.
func NewGUID() GUID {
	var g GUID
	copy(g[:], uuid.New()[:])
	return g
}

// ParseGUID decodes a 32-character hex string into a GUID.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(g) {
		return g, fmt.Errorf("%w: malformed guid %q", ErrInvalidKey, s)
	}
	copy(g[:], b)
	return g, nil
}

// ParseHash decodes a 32-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return h, fmt.Errorf("%w: malformed hash %q", ErrInvalidKey, s)
	}
	copy(h[:], b)
	return h, nil
}

// FileKey is the value type that names a single file within a version.
// It is immutable and comparable, so it can be used directly as a map key.
type FileKey struct {
	Kind Kind
	GUID GUID
	Hash Hash
}

// New builds a FileKey from its parts, validating the kind.
func New(kind Kind, guid GUID, hash Hash) (FileKey, error) {
	if !kind.Valid() {
		return FileKey{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKind, kind)
	}
	return FileKey{Kind: kind, GUID: guid, Hash: hash}, nil
}

// String renders the key in the "kind/guid/hash" form used in log lines.
func (k FileKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.GUID, k.Hash)
}

// VersionKey identifies a version independent of which kind within it is
// being addressed. Transactions and the reliability filter key their state
// by this pair.
type VersionKey struct {
	GUID GUID
	Hash Hash
}

// String renders the version key as "guid/hash".
func (v VersionKey) String() string {
	return fmt.Sprintf("%s/%s", v.GUID, v.Hash)
}

// Version returns the (guid, hash) pair that k belongs to.
func (k FileKey) Version() VersionKey {
	return VersionKey{GUID: k.GUID, Hash: k.Hash}
}

// FSPath derives the on-disk path for a committed file, per the filesystem
// backend's layout: <guid-prefix>/<guid-suffix><hash><kind>. The prefix is
// the first two hex characters of the GUID, matching the directory-fanout
// convention the filesystem backend uses to avoid one giant flat directory.
func (k FileKey) FSPath() (dir, file string) {
	guidHex := k.GUID.String()
	prefix := guidHex[:2]
	suffix := guidHex[2:]
	return prefix, suffix + k.Hash.String() + k.Kind.String()
}
